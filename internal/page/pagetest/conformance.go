package pagetest

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppscrape/internal/page"
)

const fixture = `<!doctype html>
<html><body>
<input id="q" value="stale">
<button id="go" onclick="document.getElementById('out').textContent = 'clicked:' + document.getElementById('q').value">go</button>
<div id="out"></div>
<ul id="list"><li class="item">one</li><li class="item">two</li></ul>
<script>
document.addEventListener('keydown', e => {
	if (e.key === 'Enter' || e.key === 'Escape') {
		document.getElementById('out').textContent = 'key:' + e.key;
	}
});
setTimeout(() => {
	const late = document.createElement('p');
	late.id = 'late';
	document.body.appendChild(late);
}, 200);
</script>
</body></html>`

// Conformance checks that a real engine honours the page.Driver contract
// the scraper relies on. d must be a fresh page.
func Conformance(t *testing.T, d page.Driver) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := d.Navigate(ctx, "data:text/html,"+url.PathEscape(fixture)); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	t.Run("wait for late element", func(t *testing.T) {
		if err := d.WaitForSelector(ctx, "#late", 5*time.Second); err != nil {
			t.Errorf("WaitForSelector(#late) error = %v", err)
		}
	})

	t.Run("wait times out", func(t *testing.T) {
		err := d.WaitForSelector(ctx, "#never", 300*time.Millisecond)
		if !page.IsTimeout(err) {
			t.Errorf("WaitForSelector(#never) error = %v, want timeout", err)
		}
	})

	t.Run("evaluate with args", func(t *testing.T) {
		var sum int
		if err := d.Evaluate(ctx, `(a, b) => a + b`, &sum, 2, 3); err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if sum != 5 {
			t.Errorf("Evaluate() = %d, want 5", sum)
		}
		var found bool
		if err := d.Evaluate(ctx, `(sel) => document.querySelector(sel) !== null`, &found, "#list"); err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Error("Evaluate() did not see #list")
		}
		if err := d.Evaluate(ctx, `() => undefined`, nil); err != nil {
			t.Errorf("Evaluate(undefined) error = %v", err)
		}
	})

	t.Run("type replaces then click", func(t *testing.T) {
		if err := d.Type(ctx, "#q", "Alice"); err != nil {
			t.Fatalf("Type() error = %v", err)
		}
		if err := d.Click(ctx, "#go"); err != nil {
			t.Fatalf("Click() error = %v", err)
		}
		got, err := d.ReadText(ctx, "#out")
		if err != nil {
			t.Fatal(err)
		}
		if got != "clicked:Alice" {
			t.Errorf("ReadText(#out) = %q, want clicked:Alice", got)
		}
	})

	t.Run("press", func(t *testing.T) {
		for _, key := range []string{page.KeyEnter, page.KeyEscape} {
			if err := d.Press(ctx, key); err != nil {
				t.Fatalf("Press(%s) error = %v", key, err)
			}
			got, err := d.ReadText(ctx, "#out")
			if err != nil {
				t.Fatal(err)
			}
			if got != "key:"+key {
				t.Errorf("after Press(%s) #out = %q", key, got)
			}
		}
	})

	t.Run("html", func(t *testing.T) {
		html, err := d.HTML(ctx, "#list")
		if err != nil {
			t.Fatalf("HTML() error = %v", err)
		}
		if !strings.HasPrefix(html, `<ul id="list">`) || strings.Count(html, `class="item"`) != 2 {
			t.Errorf("HTML(#list) = %q", html)
		}
	})

	t.Run("missing element", func(t *testing.T) {
		if err := d.Click(ctx, "#missing"); !errors.Is(err, page.ErrNotFound) {
			t.Errorf("Click(#missing) error = %v, want ErrNotFound", err)
		}
		if _, err := d.HTML(ctx, "#missing"); !errors.Is(err, page.ErrNotFound) {
			t.Errorf("HTML(#missing) error = %v, want ErrNotFound", err)
		}
	})
}
