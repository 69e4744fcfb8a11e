// Package viewer is a read-only terminal browser for daily archives.
package viewer

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppscrape/internal/archive"
)

// ChatRow is one line of the chat table.
type ChatRow struct {
	Name        string
	IsGroup     bool
	Messages    int
	LastUpdated time.Time
}

// Model holds the archive of the day being viewed.
type Model struct {
	store *archive.Store

	mu     sync.RWMutex
	date   string
	doc    *archive.DailyArchive
	loaded time.Time
}

// NewModel creates a model showing date.
func NewModel(store *archive.Store, date string) *Model {
	return &Model{store: store, date: date}
}

// Date returns the day being viewed.
func (m *Model) Date() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.date
}

// LoadedAt returns when the archive was last read.
func (m *Model) LoadedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Reload re-reads the day's archive. A day without an archive shows no chats.
func (m *Model) Reload(ctx context.Context) error {
	date := m.Date()
	doc, err := m.store.Load(ctx, date)
	if errors.Is(err, archive.ErrNotFound) {
		doc, err = &archive.DailyArchive{Date: date, Chats: map[string]*archive.ChatRecord{}}, nil
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.date == date {
		m.doc = doc
		m.loaded = time.Now()
	}
	m.mu.Unlock()
	return nil
}

// SetDate switches to another day and loads it.
func (m *Model) SetDate(ctx context.Context, date string) error {
	m.mu.Lock()
	m.date = date
	m.doc = nil
	m.mu.Unlock()
	return m.Reload(ctx)
}

// Step moves delta archived days away from the current one. Returns false
// when there is no such day.
func (m *Model) Step(ctx context.Context, delta int) (bool, error) {
	days, err := m.store.Days(ctx)
	if err != nil {
		return false, err
	}
	cur := m.Date()
	i, found := slices.BinarySearch(days, cur)
	switch {
	case found:
		i += delta
	case delta > 0:
		i += delta - 1
	default:
		i += delta
	}
	if i < 0 || i >= len(days) {
		return false, nil
	}
	return true, m.SetDate(ctx, days[i])
}

// Rows lists the chats, most recently updated first.
func (m *Model) Rows() []ChatRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return nil
	}
	rows := make([]ChatRow, 0, len(m.doc.Chats))
	for name, rec := range m.doc.Chats {
		rows = append(rows, ChatRow{
			Name:        name,
			IsGroup:     rec.IsGroup,
			Messages:    len(rec.Messages),
			LastUpdated: rec.LastUpdated,
		})
	}
	slices.SortFunc(rows, func(a, b ChatRow) int {
		if c := b.LastUpdated.Compare(a.LastUpdated); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return rows
}

// Messages returns the stored messages of a chat in render order.
func (m *Model) Messages(chat string) []archive.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return nil
	}
	rec, ok := m.doc.Chats[chat]
	if !ok {
		return nil
	}
	return slices.Clone(rec.Messages)
}
