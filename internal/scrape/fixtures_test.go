package scrape

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/matheus3301/wppscrape/internal/page"
	"github.com/matheus3301/wppscrape/internal/page/pagetest"
	"go.uber.org/zap"
)

var loc = DefaultLocators()

var testDay = time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

func fastSettle() page.SettleOptions {
	return page.SettleOptions{Interval: time.Millisecond, Quiet: 1, Max: 10 * time.Millisecond}
}

// chatItem renders one chat-list entry; badge is the aria-label of the
// unread marker, or "" for a read chat.
func chatItem(title, badge string, extra ...string) string {
	var b strings.Builder
	b.WriteString(`<div role="listitem">`)
	if title != "" {
		fmt.Fprintf(&b, `<span title=%q>%s</span>`, title, title)
	}
	if badge != "" {
		fmt.Fprintf(&b, `<span aria-label=%q></span>`, badge)
	}
	for _, e := range extra {
		b.WriteString(e)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func chatList(items ...string) string {
	return `<div role="grid" aria-label="Chat list">` + strings.Join(items, "") + `</div>`
}

func incoming(text, stamp string) string {
	return fmt.Sprintf(`<div class="message-in focusable-list-item"><div class="copyable-text" data-pre-plain-text="[%s] Someone: "><span class="selectable-text copyable-text"><span>%s</span></span></div></div>`, stamp, text)
}

func outgoing(text, stamp string) string {
	return fmt.Sprintf(`<div class="message-out focusable-list-item"><div class="copyable-text" data-pre-plain-text="[%s] Me: "><span class="selectable-text copyable-text"><span>%s</span></span></div></div>`, stamp, text)
}

func pane(bubbles ...string) string {
	return `<div role="application">` + strings.Join(bubbles, "") + `</div>`
}

// fakeWhatsApp scripts a page where searching for a name and pressing
// Enter opens panes[name]. Names without a pane never load.
func fakeWhatsApp(list string, panes map[string]string) *pagetest.Driver {
	d := pagetest.New()
	d.Show(loc.FilterTabs, `<div role="tablist"></div>`)
	for _, m := range FilterModes {
		d.Show(loc.FilterButtonFor(m), `<button></button>`)
	}
	d.OnEvaluate(func(string, []any) (any, error) { return true, nil })

	d.Show(loc.ChatList, list)
	d.Show(loc.SearchResults, `<div id="pane-side"></div>`)
	d.Show(loc.SearchOpen[0], `<button></button>`)
	d.OnClick(loc.SearchOpen[0], func(d *pagetest.Driver) {
		d.Show(loc.SearchInput, `<div contenteditable="true" data-tab="3"></div>`)
	})
	d.OnPress(page.KeyEnter, func(d *pagetest.Driver) {
		if markup, ok := panes[d.Typed(loc.SearchInput)]; ok {
			d.Show(loc.MessagePane, markup)
		}
	})
	d.OnPress(page.KeyEscape, func(d *pagetest.Driver) {
		d.Hide(loc.MessagePane)
		d.Hide(loc.SearchInput)
	})
	return d
}

func testArchive(t *testing.T) *archive.Store {
	t.Helper()
	return archive.New(archive.NewFileBackend(t.TempDir()), zap.NewNop())
}

func testVisitor(d page.Driver, store MessageStore) *Visitor {
	return NewVisitor(d, loc, store, VisitorOptions{
		ElementTimeout:  time.Second,
		ChatLoadTimeout: time.Second,
		Settle:          fastSettle(),
		Now:             func() time.Time { return testDay },
	}, zap.NewNop())
}
