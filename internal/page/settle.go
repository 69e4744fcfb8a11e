package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/codeGROOVE-dev/retry"
)

// Probe samples the state of a rendered region, usually its outerHTML.
type Probe func(ctx context.Context) (string, error)

// SettleOptions bounds a poll-until-stable wait.
type SettleOptions struct {
	Interval time.Duration // time between samples
	Quiet    int           // consecutive unchanged samples required
	Max      time.Duration // give up after this long
}

var errUnsettled = errors.New("region still changing")

// UntilStable samples probe every Interval until its fingerprint has been
// unchanged for Quiet consecutive samples. Probe errors reset the count.
// Returns ErrNotSettled once Max is exhausted.
func UntilStable(ctx context.Context, probe Probe, opts SettleOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.Quiet <= 0 {
		opts.Quiet = 1
	}
	attempts := uint(opts.Max/opts.Interval) + 1
	if attempts < uint(opts.Quiet)+1 {
		attempts = uint(opts.Quiet) + 1
	}

	var (
		last    uint64
		sampled bool
		stable  int
	)
	err := retry.Do(
		func() error {
			snapshot, err := probe(ctx)
			if err != nil {
				sampled, stable = false, 0
				return err
			}
			sum := xxhash.Sum64String(snapshot)
			if sampled && sum == last {
				stable++
			} else {
				stable = 0
			}
			last, sampled = sum, true
			if stable >= opts.Quiet {
				return nil
			}
			return errUnsettled
		},
		retry.Attempts(attempts),
		retry.Delay(opts.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrNotSettled, err)
	}
	return nil
}

// HTMLProbe samples the outerHTML of selector.
func HTMLProbe(d Driver, selector string) Probe {
	return func(ctx context.Context) (string, error) {
		return d.HTML(ctx, selector)
	}
}
