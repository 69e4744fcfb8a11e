// Package rodpage implements page.Driver on go-rod.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/matheus3301/wppscrape/internal/page"
	"go.uber.org/zap"
)

// Driver drives a single Chrome tab through the DevTools protocol.
type Driver struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	logger   *zap.Logger
}

// Launch starts (or attaches to) Chrome and opens one blank tab.
func Launch(ctx context.Context, opts page.LaunchOptions, logger *zap.Logger) (*Driver, error) {
	d := &Driver{logger: logger}

	controlURL := opts.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		for _, rawFlag := range opts.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		d.launcher = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		d.cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	d.browser = browser

	p, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	d.page = p

	if opts.Width > 0 && opts.Height > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Width,
			Height:            opts.Height,
			DeviceScaleFactor: 1.0,
		}).Call(p); err != nil {
			logger.Warn("failed to set viewport", zap.Error(err))
		}
	}

	logger.Info("chrome connected", zap.String("engine", "rod"), zap.Bool("attached", opts.DebuggerURL != ""))
	return d, nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return p.WaitLoad()
}

func (d *Driver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := d.page.Context(ctx).Timeout(timeout).Element(selector)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &page.TimeoutError{Selector: selector, After: timeout}
	}
	return err
}

func (d *Driver) Evaluate(ctx context.Context, js string, out any, args ...any) error {
	res, err := d.page.Context(ctx).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if out == nil || res == nil {
		return nil
	}
	return res.Value.Unmarshal(out)
}

// element looks selector up once, without rod's default wait-until-present.
func (d *Driver) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := d.page.Context(ctx).Sleeper(rod.NotFoundSleeper).Element(selector)
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return nil, fmt.Errorf("%q: %w", selector, page.ErrNotFound)
	}
	return el, err
}

func (d *Driver) Click(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *Driver) Type(ctx context.Context, selector, text string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("clear %q: %w", selector, err)
	}
	return el.Input(text)
}

func (d *Driver) Press(ctx context.Context, key string) error {
	var k input.Key
	switch key {
	case page.KeyEnter:
		k = input.Enter
	case page.KeyEscape:
		k = input.Escape
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	return d.page.Context(ctx).Keyboard.Type(k)
}

func (d *Driver) ReadText(ctx context.Context, selector string) (string, error) {
	el, err := d.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (d *Driver) HTML(ctx context.Context, selector string) (string, error) {
	el, err := d.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.HTML()
}

// Close closes the tab and, when we launched it, the browser.
func (d *Driver) Close() error {
	var err error
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil && d.launcher != nil {
		err = d.browser.Close()
	}
	d.cleanup()
	return err
}

func (d *Driver) cleanup() {
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
}

var _ page.Driver = (*Driver)(nil)
