// Package page defines the contract the scraper uses to drive a live,
// asynchronously rendered document, independent of the automation engine.
package page

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimedOut is returned when a wait exceeds its bound.
	ErrTimedOut = errors.New("timed out")
	// ErrNotFound is returned when a selector matches nothing at call time.
	ErrNotFound = errors.New("element not found")
	// ErrNotSettled is returned when a region keeps changing past its settle bound.
	ErrNotSettled = errors.New("did not settle")
)

// Keys accepted by Driver.Press.
const (
	KeyEnter  = "Enter"
	KeyEscape = "Escape"
)

// Driver is an exclusive handle on one rendered page. Implementations are
// not safe for concurrent use; callers serialize access.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// WaitForSelector blocks until selector matches, failing with ErrTimedOut after timeout.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Evaluate runs a JS function expression with args and decodes its JSON result into out (may be nil).
	Evaluate(ctx context.Context, js string, out any, args ...any) error
	Click(ctx context.Context, selector string) error
	// Type replaces the content of the matched input with text.
	Type(ctx context.Context, selector, text string) error
	Press(ctx context.Context, key string) error
	ReadText(ctx context.Context, selector string) (string, error)
	// HTML returns the outerHTML of the first element matching selector.
	HTML(ctx context.Context, selector string) (string, error)
	Close() error
}

// TimeoutError annotates ErrTimedOut with what was being waited for.
type TimeoutError struct {
	Selector string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("wait for %q: %s after %s", e.Selector, ErrTimedOut, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrTimedOut }

// IsTimeout reports whether err is a wait timeout, including context deadlines.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimedOut) || errors.Is(err, context.DeadlineExceeded)
}

// LaunchOptions configures how an engine starts or attaches to Chrome.
type LaunchOptions struct {
	Bin         string   // empty = engine default lookup
	Headless    bool
	DebuggerURL string   // attach instead of launching when set
	UserDataDir string   // persistent profile; keeps the WhatsApp login
	Flags       []string // extra Chrome flags, "--name=value" or "--name"
	Width       int
	Height      int
}
