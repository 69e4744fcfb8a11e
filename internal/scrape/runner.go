package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/matheus3301/wppscrape/internal/bus"
	"github.com/matheus3301/wppscrape/internal/status"
	"go.uber.org/zap"
)

// Visit outcomes recorded in a Report.
const (
	OutcomePersisted = "persisted"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// VisitResult is the outcome of one chat visit within a pass.
type VisitResult struct {
	Chat      ChatSummary
	Outcome   string
	Messages  int
	Err       error
	VisitedAt time.Time
}

// Report summarizes one pass.
type Report struct {
	RunID      string
	Filter     FilterMode
	StartedAt  time.Time
	FinishedAt time.Time
	Candidates int
	Persisted  int
	Empty      int
	Failed     int
	Chats      []ChatSummary // unread candidates in visit order
	Visits     []VisitResult
}

// RunStarted is the payload of bus.KindRunStarted.
type RunStarted struct {
	RunID     string
	Filter    FilterMode
	StartedAt time.Time
}

// ChatVisited is the payload of bus.KindChatVisited.
type ChatVisited struct {
	RunID  string
	Result VisitResult
}

// Runner executes one pass: select the unread filter, scan, visit each
// candidate in order. Nothing a single chat does stops the pass.
type Runner struct {
	filters *FilterController
	scanner *Scanner
	visitor *Visitor
	bus     *bus.Bus
	status  *status.Machine
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunner wires a runner. bus and status may be nil.
func NewRunner(filters *FilterController, scanner *Scanner, visitor *Visitor, b *bus.Bus, sm *status.Machine, logger *zap.Logger) *Runner {
	return &Runner{
		filters: filters,
		scanner: scanner,
		visitor: visitor,
		bus:     b,
		status:  sm,
		logger:  logger,
		now:     time.Now,
	}
}

// Filters exposes the runner's filter controller.
func (r *Runner) Filters() *FilterController { return r.filters }

// Run performs exactly one pass. The context only stops the pass between
// visits or inside a wait.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:     uuid.NewString(),
		Filter:    FilterUnread,
		StartedAt: r.now(),
	}
	logger := r.logger.With(zap.String("run_id", report.RunID))

	r.transition(logger, status.Scraping)
	r.bus.Emit(bus.KindRunStarted, RunStarted{RunID: report.RunID, Filter: report.Filter, StartedAt: report.StartedAt})
	logger.Info("scrape pass started")

	if err := isolate(logger, "select_filter", func() error {
		return r.filters.SelectFilter(ctx, FilterUnread)
	}); err != nil {
		report.Filter = r.filters.Active()
		logger.Info("proceeding with current filter", zap.String("filter", string(report.Filter)))
	}

	var candidates []ChatSummary
	_ = isolate(logger, "scan", func() error {
		candidates = r.scanner.Scan(ctx)
		return nil
	})
	report.Candidates = len(candidates)
	report.Chats = candidates
	logger.Info("unread chats found", zap.Int("count", len(candidates)))
	for _, chat := range candidates {
		logger.Info("unread chat",
			zap.String("chat", chat.Name),
			zap.Int("unread", chat.UnreadCount),
			zap.Bool("group", chat.IsGroup),
			zap.Bool("muted", chat.IsMuted),
			zap.String("last_message", chat.LastMessage),
			zap.String("last_message_time", chat.LastMessageTime),
		)
	}

	for _, chat := range candidates {
		if ctx.Err() != nil {
			logger.Info("pass cancelled", zap.Int("remaining", report.Candidates-len(report.Visits)))
			break
		}
		res := r.visit(ctx, logger, chat)
		report.Visits = append(report.Visits, res)
		switch res.Outcome {
		case OutcomePersisted:
			report.Persisted++
		case OutcomeEmpty:
			report.Empty++
		default:
			report.Failed++
		}
		r.bus.Emit(bus.KindChatVisited, ChatVisited{RunID: report.RunID, Result: res})
	}

	report.FinishedAt = r.now()
	next := status.Ready
	if report.Failed > 0 && report.Persisted == 0 {
		next = status.Degraded
	}
	r.transition(logger, next)
	r.bus.Emit(bus.KindRunFinished, *report)
	logger.Info("scrape pass finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("persisted", report.Persisted),
		zap.Int("empty", report.Empty),
		zap.Int("failed", report.Failed),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report
}

func (r *Runner) visit(ctx context.Context, logger *zap.Logger, chat ChatSummary) VisitResult {
	res := VisitResult{Chat: chat}
	logger = logger.With(zap.String("chat", chat.Name))
	var msgs []archive.Message
	// The visitor logs its own step failures.
	err := guard(logger, "visit", func() error {
		m, err := r.visitor.Visit(ctx, chat)
		msgs = m
		return err
	})
	res.VisitedAt = r.now()
	res.Messages = len(msgs)
	res.Err = err

	switch {
	case len(msgs) > 0:
		res.Outcome = OutcomePersisted
	case errors.Is(err, ErrExtractionEmpty):
		res.Outcome = OutcomeEmpty
	default:
		res.Outcome = OutcomeFailed
	}
	logger.Info("chat visit finished",
		zap.String("outcome", res.Outcome),
		zap.Int("messages", res.Messages),
		zap.Error(err),
	)
	return res
}

func (r *Runner) transition(logger *zap.Logger, to status.State) {
	if r.status == nil || r.status.Current() == to {
		return
	}
	if err := r.status.Transition(to); err != nil {
		logger.Debug("status not changed", zap.Error(err))
	}
}
