package scrape

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var errPanic = errors.New("panic")

// isolate runs fn, converting a panic into an error, and logs any failure
// under step. It is the single catch-log-continue point of the scraper.
func isolate(logger *zap.Logger, step string, fn func() error, fields ...zap.Field) error {
	logger = logger.With(fields...)
	err := guard(logger, step, fn)
	if err != nil && !errors.Is(err, errPanic) {
		logger.Warn("step failed", zap.String("step", step), zap.Error(err))
	}
	return err
}

// guard is isolate without the failure log, for callers whose callee
// already logged it. Panics are still logged.
func guard(logger *zap.Logger, step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
			logger.Error("step panicked", zap.String("step", step), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	return fn()
}
