// Package cdppage implements page.Driver on chromedp.
package cdppage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/matheus3301/wppscrape/internal/page"
	"go.uber.org/zap"
)

// Driver owns one chromedp tab context. Per-call contexts are derived from
// it so that cancelling a call never closes the tab.
type Driver struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
}

// Launch starts (or attaches to) Chrome and opens a tab.
func Launch(ctx context.Context, opts page.LaunchOptions, logger *zap.Logger) (*Driver, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.DebuggerURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), opts.DebuggerURL)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
		)
		if opts.Bin != "" {
			execOpts = append(execOpts, chromedp.ExecPath(opts.Bin))
		}
		if opts.UserDataDir != "" {
			execOpts = append(execOpts, chromedp.UserDataDir(opts.UserDataDir))
		}
		if opts.Width > 0 && opts.Height > 0 {
			execOpts = append(execOpts, chromedp.WindowSize(opts.Width, opts.Height))
		}
		for _, rawFlag := range opts.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				execOpts = append(execOpts, chromedp.Flag(name, val))
			} else {
				execOpts = append(execOpts, chromedp.Flag(name, true))
			}
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), execOpts...)
	}

	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)
	d := &Driver{tab: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc, logger: logger}

	// The first Run allocates the browser.
	if err := d.run(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	logger.Info("chrome connected", zap.String("engine", "chromedp"), zap.Bool("attached", opts.DebuggerURL != ""))
	return d, nil
}

// run executes actions on the tab, bounded by ctx's cancellation and deadline.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	callCtx, cancel := d.callContext(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(callCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// callContext derives one per-call child of the tab carrying ctx's deadline.
func (d *Driver) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(d.tab, deadline)
	}
	return context.WithCancel(d.tab)
}

func (d *Driver) exists(ctx context.Context, selector string) error {
	var found bool
	js := fmt.Sprintf(`document.querySelector(%s) !== null`, quote(selector))
	if err := d.run(ctx, chromedp.Evaluate(js, &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%q: %w", selector, page.ErrNotFound)
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *Driver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := d.run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil && ctx.Err() == nil && waitCtx.Err() != nil {
		return &page.TimeoutError{Selector: selector, After: timeout}
	}
	return err
}

// Evaluate calls js as a function with JSON-encoded args and awaits promises.
func (d *Driver) Evaluate(ctx context.Context, js string, out any, args ...any) error {
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode evaluate arg: %w", err)
		}
		encoded = append(encoded, string(b))
	}
	// undefined has no JSON form; chromedp rejects it.
	expr := fmt.Sprintf("Promise.resolve((%s)(%s)).then(v => v === undefined ? null : v)", js, strings.Join(encoded, ","))

	var raw []byte
	err := d.run(ctx, chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (d *Driver) Click(ctx context.Context, selector string) error {
	if err := d.exists(ctx, selector); err != nil {
		return err
	}
	return d.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Type clears the field in-page first; SendKeys only appends.
func (d *Driver) Type(ctx context.Context, selector, text string) error {
	if err := d.exists(ctx, selector); err != nil {
		return err
	}
	clear := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		el.focus();
		if ('value' in el) { el.value = ''; } else { document.execCommand('selectAll'); document.execCommand('delete'); }
		return true;
	})()`, quote(selector))
	var cleared bool
	return d.run(ctx,
		chromedp.Evaluate(clear, &cleared),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (d *Driver) Press(ctx context.Context, key string) error {
	switch key {
	case page.KeyEnter:
		return d.run(ctx, chromedp.KeyEvent(kb.Enter))
	case page.KeyEscape:
		return d.run(ctx, chromedp.KeyEvent(kb.Escape))
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
}

func (d *Driver) ReadText(ctx context.Context, selector string) (string, error) {
	if err := d.exists(ctx, selector); err != nil {
		return "", err
	}
	var text string
	err := d.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery))
	return text, err
}

func (d *Driver) HTML(ctx context.Context, selector string) (string, error) {
	if err := d.exists(ctx, selector); err != nil {
		return "", err
	}
	var html string
	err := d.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery))
	return html, err
}

func (d *Driver) Close() error {
	err := chromedp.Cancel(d.tab)
	d.cancelTab()
	d.cancelAlloc()
	return err
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

var _ page.Driver = (*Driver)(nil)
