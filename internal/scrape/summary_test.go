package scrape

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteSummary(t *testing.T) {
	var out bytes.Buffer
	WriteSummary(&out, []ChatSummary{
		{Name: "Family", UnreadCount: 5, IsGroup: true, IsMuted: true, LastMessage: "dinner at 8", LastMessageTime: "19:02"},
		{Name: "Alice", UnreadCount: 1},
	})

	want := `=== Unread Messages Summary ===

[group] Family (muted)
  5 unread message(s)
  Last message: dinner at 8
  At: 19:02

[contact] Alice
  1 unread message(s)

Total chats with unread messages: 2
`
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("WriteSummary() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteSummaryEmpty(t *testing.T) {
	var out bytes.Buffer
	WriteSummary(&out, nil)
	if got := out.String(); got != "No unread messages found.\n" {
		t.Errorf("WriteSummary(nil) = %q", got)
	}
}
