// Package pagetest provides a scripted in-memory page.Driver for tests.
// Selectors are matched by exact string: a selector "exists" once Show has
// been called with it, and HTML returns the markup registered for it.
package pagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppscrape/internal/page"
)

// EvalFunc answers Driver.Evaluate calls.
type EvalFunc func(js string, args []any) (any, error)

// Driver is a fake page.Driver. The zero value is not usable; call New.
type Driver struct {
	mu      sync.Mutex
	html    map[string]string
	clicks  map[string]func(d *Driver)
	presses map[string]func(d *Driver)
	eval    EvalFunc
	typed   map[string]string
	calls   []string
	closed  bool
}

// New returns an empty fake page.
func New() *Driver {
	return &Driver{
		html:    make(map[string]string),
		clicks:  make(map[string]func(d *Driver)),
		presses: make(map[string]func(d *Driver)),
		typed:   make(map[string]string),
	}
}

// Show makes selector resolve, with markup returned by HTML.
func (d *Driver) Show(selector, markup string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.html[selector] = markup
	return d
}

// Hide makes selector stop resolving.
func (d *Driver) Hide(selector string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.html, selector)
	return d
}

// OnClick registers fn to run after selector is clicked.
func (d *Driver) OnClick(selector string, fn func(d *Driver)) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks[selector] = fn
	return d
}

// OnPress registers fn to run after key is pressed.
func (d *Driver) OnPress(key string, fn func(d *Driver)) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presses[key] = fn
	return d
}

// OnEvaluate sets the handler for Evaluate calls.
func (d *Driver) OnEvaluate(fn EvalFunc) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eval = fn
	return d
}

// Typed returns the last text typed into selector.
func (d *Driver) Typed(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typed[selector]
}

// Calls returns the recorded interactions, e.g. "click:#unread-filter".
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Count returns how many recorded calls start with prefix.
func (d *Driver) Count(prefix string) int {
	n := 0
	for _, c := range d.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *Driver) has(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.html[selector]
	return ok
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.record("navigate:" + url)
	return ctx.Err()
}

// WaitForSelector never sleeps: a missing selector times out immediately.
func (d *Driver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	d.record("wait:" + selector)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.has(selector) {
		return &page.TimeoutError{Selector: selector, After: timeout}
	}
	return nil
}

func (d *Driver) Evaluate(ctx context.Context, js string, out any, args ...any) error {
	d.record("eval")
	d.mu.Lock()
	fn := d.eval
	d.mu.Unlock()
	if fn == nil {
		return ctx.Err()
	}
	v, err := fn(js, args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (d *Driver) Click(ctx context.Context, selector string) error {
	d.record("click:" + selector)
	if !d.has(selector) {
		return fmt.Errorf("click %q: %w", selector, page.ErrNotFound)
	}
	d.mu.Lock()
	fn := d.clicks[selector]
	d.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return ctx.Err()
}

func (d *Driver) Type(ctx context.Context, selector, text string) error {
	d.record("type:" + selector + "=" + text)
	if !d.has(selector) {
		return fmt.Errorf("type into %q: %w", selector, page.ErrNotFound)
	}
	d.mu.Lock()
	d.typed[selector] = text
	d.mu.Unlock()
	return ctx.Err()
}

func (d *Driver) Press(ctx context.Context, key string) error {
	d.record("press:" + key)
	d.mu.Lock()
	fn := d.presses[key]
	d.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return ctx.Err()
}

func (d *Driver) ReadText(ctx context.Context, selector string) (string, error) {
	markup, err := d.HTML(ctx, selector)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Text()), nil
}

func (d *Driver) HTML(_ context.Context, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	markup, ok := d.html[selector]
	if !ok {
		return "", fmt.Errorf("html of %q: %w", selector, page.ErrNotFound)
	}
	return markup, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

var _ page.Driver = (*Driver)(nil)
