package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned by a Backend when a document does not exist.
var ErrNotFound = errors.New("archive document not found")

// Backend reads and writes whole documents by name.
type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	List(ctx context.Context) ([]string, error)
}

// Store merges chat records into daily documents held by a Backend.
type Store struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	// mu serializes read-modify-write of documents within this process.
	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the source of last_updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store on backend.
func New(backend Backend, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{backend: backend, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert reads or creates the document for date, replaces the record for
// rec.ChatName and writes the whole document back.
func (s *Store) Upsert(ctx context.Context, date string, rec ChatRecord) error {
	if rec.ChatName == "" {
		return errors.New("upsert: empty chat name")
	}
	if err := validateDate(date); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx, date)
	if errors.Is(err, ErrNotFound) {
		doc = &DailyArchive{Date: date, Chats: make(map[string]*ChatRecord)}
	} else if err != nil {
		return fmt.Errorf("upsert %s: %w", date, err)
	}

	now := s.now()
	rec.LastUpdated = now
	if rec.Messages == nil {
		rec.Messages = []Message{}
	}
	doc.Chats[rec.ChatName] = &rec
	doc.LastUpdated = now

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	if err := s.backend.Write(ctx, FileName(date), data); err != nil {
		return fmt.Errorf("write archive %s: %w", date, err)
	}

	s.logger.Debug("chat archived",
		zap.String("date", date),
		zap.String("chat", rec.ChatName),
		zap.Int("messages", len(rec.Messages)),
		zap.Int("chats", len(doc.Chats)),
	)
	return nil
}

// Load returns the document for date, or an error wrapping ErrNotFound.
func (s *Store) Load(ctx context.Context, date string) (*DailyArchive, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	return s.load(ctx, date)
}

func (s *Store) load(ctx context.Context, date string) (*DailyArchive, error) {
	data, err := s.backend.Read(ctx, FileName(date))
	if err != nil {
		return nil, err
	}
	var doc DailyArchive
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", date, err)
	}
	if doc.Chats == nil {
		doc.Chats = make(map[string]*ChatRecord)
	}
	return &doc, nil
}

// Days lists the dates that have a document, oldest first.
func (s *Store) Days(ctx context.Context) ([]string, error) {
	names, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	var days []string
	for _, name := range names {
		if date, ok := DateFromFileName(name); ok {
			days = append(days, date)
		}
	}
	slices.Sort(days)
	return days, nil
}
