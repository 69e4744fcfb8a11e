// Package history records scrape passes published on the bus into the
// session's run history database.
package history

import (
	"context"

	"github.com/matheus3301/wppscrape/internal/bus"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/store"
	"go.uber.org/zap"
)

// Recorder subscribes to "scrape." events and writes runs and visits.
type Recorder struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a new recorder.
func NewRecorder(db *store.DB, b *bus.Bus, logger *zap.Logger) *Recorder {
	return &Recorder{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to scrape events on the bus.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe("scrape.", 256)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the recorder and waits for it to exit.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *Recorder) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindRunStarted:
		p, ok := evt.Payload.(scrape.RunStarted)
		if !ok {
			return
		}
		if err := r.db.InsertRun(&store.Run{
			ID:        p.RunID,
			StartedAt: p.StartedAt.UnixMilli(),
			Filter:    string(p.Filter),
		}); err != nil {
			r.logger.Error("failed to record run start", zap.Error(err), zap.String("run_id", p.RunID))
		}
	case bus.KindChatVisited:
		p, ok := evt.Payload.(scrape.ChatVisited)
		if !ok {
			return
		}
		if err := r.db.InsertVisit(visitRow(p)); err != nil {
			r.logger.Error("failed to record visit", zap.Error(err), zap.String("run_id", p.RunID), zap.String("chat", p.Result.Chat.Name))
		}
	case bus.KindRunFinished:
		p, ok := evt.Payload.(scrape.Report)
		if !ok {
			return
		}
		if err := r.db.FinishRun(&store.Run{
			ID:         p.RunID,
			StartedAt:  p.StartedAt.UnixMilli(),
			FinishedAt: p.FinishedAt.UnixMilli(),
			Filter:     string(p.Filter),
			Candidates: p.Candidates,
			Persisted:  p.Persisted,
			Empty:      p.Empty,
			Failed:     p.Failed,
		}); err != nil {
			r.logger.Error("failed to record run finish", zap.Error(err), zap.String("run_id", p.RunID))
		}
	}
}

func visitRow(p scrape.ChatVisited) *store.Visit {
	v := &store.Visit{
		RunID:        p.RunID,
		ChatName:     p.Result.Chat.Name,
		IsGroup:      p.Result.Chat.IsGroup,
		UnreadCount:  p.Result.Chat.UnreadCount,
		Outcome:      p.Result.Outcome,
		MessageCount: p.Result.Messages,
		VisitedAt:    p.Result.VisitedAt.UnixMilli(),
	}
	if p.Result.Err != nil {
		v.ErrorKind = scrape.ErrorKind(p.Result.Err)
		v.ErrorMessage = truncate(p.Result.Err.Error(), 500)
	}
	return v
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
