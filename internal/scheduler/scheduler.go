// Package scheduler repeats scrape passes and owns exclusive access to the
// page: passes and operator filter switches never overlap.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/wppscrape/internal/bus"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/status"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotReady is returned when the session cannot scrape in its current state.
var ErrNotReady = errors.New("session not ready to scrape")

// Runner performs one scrape pass.
type Runner interface {
	Run(ctx context.Context) *scrape.Report
}

// FilterSelector switches the chat-list filter.
type FilterSelector interface {
	SelectFilter(ctx context.Context, mode scrape.FilterMode) error
}

// Scheduler runs passes every interval and on demand.
type Scheduler struct {
	runner   Runner
	filters  FilterSelector
	interval time.Duration
	status   *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger

	page  chan struct{} // one token: holder may use the page
	group singleflight.Group
	last  atomic.Pointer[scrape.Report]

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. interval 0 runs a single pass on Start.
func New(runner Runner, filters FilterSelector, interval time.Duration, sm *status.Machine, b *bus.Bus, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		filters:  filters,
		interval: interval,
		status:   sm,
		bus:      b,
		logger:   logger,
		page:     make(chan struct{}, 1),
		runCtx:   context.Background(),
	}
	return s
}

// Start begins the periodic loop. The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(s.runCtx, s.done)
}

// Stop cancels the loop and any running pass, and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.tick(ctx)
	if s.interval <= 0 {
		s.logger.Info("single pass complete, scheduler idle")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.Trigger(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Info("scheduled pass skipped", zap.Error(err))
	}
}

// Trigger runs a pass now, or joins the one already running.
func (s *Scheduler) Trigger(ctx context.Context) (*scrape.Report, error) {
	if s.status != nil && !s.status.CanScrape() {
		return nil, ErrNotReady
	}

	s.mu.Lock()
	runCtx := s.runCtx
	s.mu.Unlock()

	ch := s.group.DoChan("pass", func() (any, error) {
		var report *scrape.Report
		err := s.Exclusive(runCtx, func(ctx context.Context) error {
			report = s.runner.Run(ctx)
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.last.Store(report)
		return report, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("trigger joined running pass")
		}
		return res.Val.(*scrape.Report), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Exclusive runs fn while holding the page.
func (s *Scheduler) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case s.page <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.page }()
	return fn(ctx)
}

// SelectFilter switches the chat-list filter between passes.
func (s *Scheduler) SelectFilter(ctx context.Context, mode scrape.FilterMode) error {
	err := s.Exclusive(ctx, func(ctx context.Context) error {
		return s.filters.SelectFilter(ctx, mode)
	})
	if err != nil {
		return err
	}
	s.bus.Emit(bus.KindFilterChanged, mode)
	return nil
}

// LastReport returns the most recent completed pass, or nil.
func (s *Scheduler) LastReport() *scrape.Report {
	return s.last.Load()
}
