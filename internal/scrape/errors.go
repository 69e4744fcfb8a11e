package scrape

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded marks an expected, transient absence of a page region.
	ErrNotLoaded = errors.New("not loaded")
	// ErrFilterNotFound is returned when a filter control is absent.
	ErrFilterNotFound = errors.New("filter control not found")
	// ErrSearchUnavailable aborts a visit when no search locator responds.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrChatLoadTimeout aborts a visit when the message pane never renders.
	ErrChatLoadTimeout = errors.New("chat load timed out")
	// ErrExtractionEmpty is a soft failure: the chat rendered no messages.
	ErrExtractionEmpty = errors.New("no messages extracted")
	// ErrRecoveryFailed means every way back to the chat list failed.
	ErrRecoveryFailed = errors.New("could not return to chat list")
)

// Step names a stage of a chat visit.
type Step string

const (
	StepSearch  Step = "search"
	StepType    Step = "type"
	StepOpen    Step = "open"
	StepExtract Step = "extract"
	StepPersist Step = "persist"
	StepReturn  Step = "return"
)

// VisitError describes why a chat visit did not fully succeed.
type VisitError struct {
	Chat string
	Step Step
	Err  error
}

func (e *VisitError) Error() string {
	return fmt.Sprintf("visit %q: %s: %v", e.Chat, e.Step, e.Err)
}

func (e *VisitError) Unwrap() error { return e.Err }

// Kind returns a short, stable label for the error class, for logs and
// run history.
func (e *VisitError) Kind() string {
	return ErrorKind(e.Err)
}

// ErrorKind classifies err against the scrape taxonomy.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSearchUnavailable):
		return "search_unavailable"
	case errors.Is(err, ErrChatLoadTimeout):
		return "chat_load_timeout"
	case errors.Is(err, ErrExtractionEmpty):
		return "extraction_empty"
	case errors.Is(err, ErrRecoveryFailed):
		return "recovery_failed"
	case errors.Is(err, ErrFilterNotFound):
		return "filter_not_found"
	case errors.Is(err, ErrNotLoaded):
		return "not_loaded"
	case errors.Is(err, errPanic):
		return "panic"
	default:
		return "error"
	}
}
