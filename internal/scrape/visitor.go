package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/matheus3301/wppscrape/internal/page"
	"go.uber.org/zap"
)

// MessageStore persists one chat's messages into the day's archive.
type MessageStore interface {
	Upsert(ctx context.Context, date string, rec archive.ChatRecord) error
}

// VisitorOptions bounds the waits of a visit.
type VisitorOptions struct {
	ElementTimeout  time.Duration // search controls and the way back
	ChatLoadTimeout time.Duration // message pane after opening a chat
	Settle          page.SettleOptions
	Now             func() time.Time // archive date source; defaults to time.Now
}

// Visitor opens one chat through search, scrapes it and returns to the list.
type Visitor struct {
	driver page.Driver
	loc    Locators
	store  MessageStore
	opts   VisitorOptions
	logger *zap.Logger
}

// NewVisitor creates a visitor writing into store.
func NewVisitor(d page.Driver, loc Locators, store MessageStore, opts VisitorOptions, logger *zap.Logger) *Visitor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Visitor{driver: d, loc: loc, store: store, opts: opts, logger: logger}
}

// Visit scrapes chat and persists its messages. Failures come back as
// *VisitError; nothing panics out. When the messages were persisted but the
// way back to the list failed, both the messages and an error wrapping
// ErrRecoveryFailed are returned.
func (v *Visitor) Visit(ctx context.Context, chat ChatSummary) (msgs []archive.Message, err error) {
	run := func(step Step, fn func() error) error {
		if stepErr := isolate(v.logger, string(step), fn, zap.String("chat", chat.Name)); stepErr != nil {
			return &VisitError{Chat: chat.Name, Step: step, Err: stepErr}
		}
		return nil
	}

	defer func() {
		returnErr := run(StepReturn, func() error { return v.returnToList(ctx) })
		if returnErr != nil && (err == nil || errors.Is(err, ErrExtractionEmpty)) {
			err = returnErr
		}
	}()

	if err := run(StepSearch, func() error { return v.openSearch(ctx) }); err != nil {
		return nil, err
	}
	if err := run(StepType, func() error { return v.typeName(ctx, chat.Name) }); err != nil {
		return nil, err
	}
	if err := run(StepOpen, func() error { return v.openTopResult(ctx) }); err != nil {
		return nil, err
	}

	var extracted []archive.Message
	if err := run(StepExtract, func() error {
		var err error
		extracted, err = v.extract(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if len(extracted) == 0 {
		v.logger.Info("no messages extracted, skipping persist", zap.String("chat", chat.Name))
		return nil, &VisitError{Chat: chat.Name, Step: StepExtract, Err: ErrExtractionEmpty}
	}

	if err := run(StepPersist, func() error {
		return v.store.Upsert(ctx, archive.DateOf(v.opts.Now()), archive.ChatRecord{
			ChatName: chat.Name,
			IsGroup:  chat.IsGroup,
			Messages: extracted,
		})
	}); err != nil {
		return nil, err
	}

	v.logger.Info("chat scraped", zap.String("chat", chat.Name), zap.Int("messages", len(extracted)))
	return extracted, nil
}

// openSearch clicks the first search locator that renders in time.
func (v *Visitor) openSearch(ctx context.Context) error {
	for _, sel := range v.loc.SearchOpen {
		err := v.driver.WaitForSelector(ctx, sel, v.opts.ElementTimeout)
		if err == nil {
			err = v.driver.Click(ctx, sel)
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v.logger.Debug("search locator failed", zap.String("selector", sel), zap.Error(err))
	}
	return ErrSearchUnavailable
}

func (v *Visitor) typeName(ctx context.Context, name string) error {
	if err := v.driver.WaitForSelector(ctx, v.loc.SearchInput, v.opts.ElementTimeout); err != nil {
		return fmt.Errorf("%w: input: %v", ErrSearchUnavailable, err)
	}
	if err := v.driver.Type(ctx, v.loc.SearchInput, name); err != nil {
		return fmt.Errorf("type name: %w", err)
	}
	return v.settle(ctx, v.loc.SearchResults)
}

func (v *Visitor) openTopResult(ctx context.Context) error {
	if err := v.driver.Press(ctx, page.KeyEnter); err != nil {
		return fmt.Errorf("confirm result: %w", err)
	}
	if err := v.driver.WaitForSelector(ctx, v.loc.MessagePane, v.opts.ChatLoadTimeout); err != nil {
		if page.IsTimeout(err) && ctx.Err() == nil {
			return fmt.Errorf("%w: %v", ErrChatLoadTimeout, err)
		}
		return err
	}
	return nil
}

func (v *Visitor) extract(ctx context.Context) ([]archive.Message, error) {
	if err := v.settle(ctx, v.loc.MessagePane); err != nil {
		return nil, err
	}
	markup, err := v.driver.HTML(ctx, v.loc.MessagePane)
	if err != nil {
		return nil, fmt.Errorf("read message pane: %w", err)
	}
	return parseMessages(markup, v.loc)
}

// returnToList backs out with Escape, falling back to the search toggle.
// Either way the chat list must be rendered afterwards.
func (v *Visitor) returnToList(ctx context.Context) error {
	back := func() error {
		return v.driver.Press(ctx, page.KeyEscape)
	}
	toggle := func() error {
		return v.driver.Click(ctx, v.loc.SearchToggle)
	}

	var lastErr error
	for _, action := range []func() error{back, toggle} {
		err := action()
		if err == nil {
			err = v.driver.WaitForSelector(ctx, v.loc.ChatList, v.opts.ElementTimeout)
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrRecoveryFailed, lastErr)
}

// settle waits for selector to stop changing. Not settling is not an error.
func (v *Visitor) settle(ctx context.Context, selector string) error {
	err := page.UntilStable(ctx, page.HTMLProbe(v.driver, selector), v.opts.Settle)
	if errors.Is(err, page.ErrNotSettled) {
		v.logger.Debug("region still changing, proceeding", zap.String("selector", selector))
		return nil
	}
	return err
}
