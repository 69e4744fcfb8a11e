package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wppscrape/internal/page"
	"go.uber.org/zap"
)

// FilterMode is one of the chat-list filter tabs.
type FilterMode string

const (
	FilterAll       FilterMode = "all"
	FilterUnread    FilterMode = "unread"
	FilterFavorites FilterMode = "favorites"
	FilterGroup     FilterMode = "group"
)

// FilterModes lists the modes in the order the UI shows them.
var FilterModes = []FilterMode{FilterAll, FilterUnread, FilterFavorites, FilterGroup}

// FilterUsage is the hint shown for unrecognized filter input.
const FilterUsage = "Available filters: all, unread, favorites, group"

// ParseFilterMode parses operator input, ignoring case and surrounding space.
func ParseFilterMode(s string) (FilterMode, error) {
	mode := FilterMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range FilterModes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

const clickFilterJS = `(selector) => {
	const button = document.querySelector(selector);
	if (!button) return false;
	button.click();
	return true;
}`

// FilterController switches the chat-list filter.
type FilterController struct {
	driver  page.Driver
	loc     Locators
	timeout time.Duration
	settle  page.SettleOptions
	logger  *zap.Logger

	mu     sync.Mutex
	active FilterMode
}

// NewFilterController creates a controller. timeout bounds the wait for
// the filter controls.
func NewFilterController(d page.Driver, loc Locators, timeout time.Duration, settle page.SettleOptions, logger *zap.Logger) *FilterController {
	return &FilterController{
		driver:  d,
		loc:     loc,
		timeout: timeout,
		settle:  settle,
		logger:  logger,
	}
}

// Active returns the last mode successfully selected, or "" if none.
func (f *FilterController) Active() FilterMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// SelectFilter clicks the filter tab for mode and waits for the chat list
// to stop re-rendering. A list that does not settle in time is logged and
// otherwise ignored.
func (f *FilterController) SelectFilter(ctx context.Context, mode FilterMode) error {
	button := f.loc.FilterButtonFor(mode)

	for _, sel := range []string{f.loc.FilterTabs, button} {
		if err := f.driver.WaitForSelector(ctx, sel, f.timeout); err != nil {
			if page.IsTimeout(err) && ctx.Err() == nil {
				return fmt.Errorf("select %s: %w: %v", mode, ErrFilterNotFound, err)
			}
			return fmt.Errorf("select %s: %w", mode, err)
		}
	}

	var clicked bool
	if err := f.driver.Evaluate(ctx, clickFilterJS, &clicked, button); err != nil {
		return fmt.Errorf("select %s: click: %w", mode, err)
	}
	if !clicked {
		return fmt.Errorf("select %s: %w", mode, ErrFilterNotFound)
	}

	err := page.UntilStable(ctx, page.HTMLProbe(f.driver, f.loc.ChatList), f.settle)
	switch {
	case errors.Is(err, page.ErrNotSettled):
		f.logger.Debug("chat list still changing after filter switch", zap.String("filter", string(mode)))
	case err != nil:
		return fmt.Errorf("select %s: %w", mode, err)
	}

	f.mu.Lock()
	f.active = mode
	f.mu.Unlock()
	f.logger.Info("filter selected", zap.String("filter", string(mode)))
	return nil
}
