// Package login brings the WhatsApp Web page to a usable chat list,
// walking the operator through QR pairing when the profile is not linked.
package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"github.com/matheus3301/wppscrape/internal/bus"
	"github.com/matheus3301/wppscrape/internal/page"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/status"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// ErrBootstrap wraps every failure that leaves the page unusable.
var ErrBootstrap = errors.New("bootstrap failed")

// Options bounds the bootstrap.
type Options struct {
	URL          string
	ReadyTimeout time.Duration // until the chat list or the QR code shows
	LoginTimeout time.Duration // for the operator to scan the QR code
	PollInterval time.Duration
}

// Bootstrapper loads the host page and waits until it is logged in.
type Bootstrapper struct {
	driver page.Driver
	loc    scrape.Locators
	opts   Options
	status *status.Machine
	bus    *bus.Bus
	out    io.Writer
	logger *zap.Logger
}

// New creates a bootstrapper. QR codes are drawn on out.
func New(d page.Driver, loc scrape.Locators, opts Options, sm *status.Machine, b *bus.Bus, out io.Writer, logger *zap.Logger) *Bootstrapper {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Bootstrapper{driver: d, loc: loc, opts: opts, status: sm, bus: b, out: out, logger: logger}
}

// Run navigates to the host and returns once the chat list is rendered.
// On failure the status machine is left in ERROR.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if err := b.run(ctx); err != nil {
		b.transition(status.Error)
		return fmt.Errorf("%w: %w", ErrBootstrap, err)
	}
	b.transition(status.Ready)
	b.logger.Info("chat list ready")
	return nil
}

func (b *Bootstrapper) run(ctx context.Context) error {
	b.transition(status.Loading)

	err := retry.Do(
		func() error { return b.driver.Navigate(ctx, b.opts.URL) },
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Warn("retrying navigation", zap.Uint("attempt", n), zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", b.opts.URL, err)
	}

	var needsQR bool
	err = b.poll(ctx, b.opts.ReadyTimeout, b.loc.ChatList+" | "+b.loc.QRCanvas, func() (bool, error) {
		if ok, err := b.present(ctx, b.loc.ChatList); ok || err != nil {
			return ok, err
		}
		ok, err := b.present(ctx, b.loc.QRCanvas)
		needsQR = ok
		return ok, err
	})
	if err != nil {
		return err
	}
	if !needsQR {
		return nil
	}

	if err := b.pair(ctx); err != nil {
		return err
	}
	b.transition(status.Loading)
	if err := b.driver.WaitForSelector(ctx, b.loc.ChatList, b.opts.ReadyTimeout); err != nil {
		return fmt.Errorf("chat list after login: %w", err)
	}
	return nil
}

// pair shows the QR code until the page drops it, redrawing when it rotates.
func (b *Bootstrapper) pair(ctx context.Context) error {
	b.transition(status.AuthRequired)
	b.logger.Info("device not linked, waiting for QR scan")

	var shown string
	err := b.poll(ctx, b.opts.LoginTimeout, b.loc.QRCanvas+" gone", func() (bool, error) {
		ok, err := b.present(ctx, b.loc.QRCanvas)
		if err != nil || !ok {
			return !ok, err
		}
		ref, err := b.qrPayload(ctx)
		if err != nil || ref == "" || ref == shown {
			return false, nil
		}
		shown = ref
		b.bus.Emit(bus.KindQRGenerated, ref)
		fmt.Fprintf(b.out, "\nScan this QR code with WhatsApp (Linked devices):\n\n%s\n", RenderQR(ref))
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("waiting for QR scan: %w", err)
	}
	b.bus.Emit(bus.KindAuthenticated, nil)
	b.logger.Info("device linked")
	return nil
}

func (b *Bootstrapper) qrPayload(ctx context.Context) (string, error) {
	markup, err := b.driver.HTML(ctx, b.loc.QRPayload)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	ref, _ := doc.Find("[data-ref]").First().Attr("data-ref")
	return ref, nil
}

// present reports whether selector currently matches.
func (b *Bootstrapper) present(ctx context.Context, selector string) (bool, error) {
	_, err := b.driver.HTML(ctx, selector)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, page.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// poll calls check every PollInterval until it reports done or timeout passes.
func (b *Bootstrapper) poll(ctx context.Context, timeout time.Duration, what string, check func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &page.TimeoutError{Selector: what, After: timeout}
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *Bootstrapper) transition(to status.State) {
	if b.status == nil || b.status.Current() == to {
		return
	}
	if err := b.status.Transition(to); err != nil {
		b.logger.Debug("status not changed", zap.Error(err))
	}
}

// RenderQR draws content as a terminal QR code using half-block characters.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "(QR generation failed: " + err.Error() + ")"
	}
	return qr.ToSmallString(false)
}
