package viewer

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/rivo/tview"
)

// chatTable lists the chats archived for the day.
type chatTable struct {
	*tview.Table
	rows []ChatRow
}

func newChatTable() *chatTable {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")
	return &chatTable{Table: table}
}

// update redraws the table and keeps the selection on the same chat when
// it is still present.
func (t *chatTable) update(rows []ChatRow) {
	selected := t.selected()
	t.rows = rows
	t.Clear()

	for col, title := range []string{" Name", " Grp", " Msgs", " Updated"} {
		t.SetCell(0, col, tview.NewTableCell(title).
			SetSelectable(false).
			SetTextColor(tview.Styles.SecondaryTextColor))
	}

	row := 1
	for i, r := range rows {
		group := ""
		if r.IsGroup {
			group = "G"
		}
		t.SetCell(i+1, 0, tview.NewTableCell(" "+sanitize(r.Name)).SetMaxWidth(32).SetExpansion(1))
		t.SetCell(i+1, 1, tview.NewTableCell(" "+group).SetTextColor(tcell.ColorFuchsia))
		t.SetCell(i+1, 2, tview.NewTableCell(fmt.Sprintf(" %d", r.Messages)).SetAlign(tview.AlignRight))
		t.SetCell(i+1, 3, tview.NewTableCell(" "+formatUpdated(r.LastUpdated)))
		if r.Name == selected {
			row = i + 1
		}
	}
	if len(rows) > 0 {
		t.Select(row, 0)
	}
}

// selected returns the chat under the cursor, or "".
func (t *chatTable) selected() string {
	row, _ := t.GetSelection()
	if idx := row - 1; idx >= 0 && idx < len(t.rows) {
		return t.rows[idx].Name
	}
	return ""
}

// messagePane shows one chat's messages in render order.
type messagePane struct {
	*tview.TextView
}

func newMessagePane() *messagePane {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	return &messagePane{TextView: tv}
}

func (p *messagePane) show(chat string, msgs []archive.Message) {
	p.Clear()
	if chat == "" {
		p.SetTitle(" Messages ")
		return
	}
	p.SetTitle(fmt.Sprintf(" %s (%d) ", sanitize(chat), len(msgs)))
	for _, m := range msgs {
		who, color := "them", "green"
		if m.Type == archive.Sent {
			who, color = "you", "aqua"
		}
		_, _ = fmt.Fprintf(p, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			color, who, tview.Escape(m.Time), tview.Escape(sanitize(m.Text)))
	}
	p.ScrollToEnd()
}

const keyHints = "q:quit r:reload [:prev ]:next"

// statusBar shows the day, the last reload and transient notices.
type statusBar struct {
	*tview.TextView
}

func newStatusBar() *statusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &statusBar{TextView: tv}
}

func (sb *statusBar) render(date string, chats int, loaded time.Time, notice string) {
	sb.Clear()
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %d chats | loaded %s | [::d]%s[-:-:-]",
		date, chats, loaded.Format("15:04:05"), tview.Escape(keyHints))
	if notice != "" {
		line += " | [yellow]" + tview.Escape(notice) + "[-]"
	}
	_, _ = fmt.Fprint(sb, line)
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04:05")
}

// sanitize drops codepoints tcell draws badly: skin tone modifiers, zero
// width joiners and variation selectors.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF,
			r == 0x200D,
			r >= 0xFE00 && r <= 0xFE0F,
			r >= 0xE0100 && r <= 0xE01EF:
			return -1
		}
		return r
	}, s)
}
