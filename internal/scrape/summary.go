package scrape

import (
	"fmt"
	"io"
)

// WriteSummary prints the unread chats of a pass in list order.
func WriteSummary(w io.Writer, chats []ChatSummary) {
	if len(chats) == 0 {
		_, _ = fmt.Fprintln(w, "No unread messages found.")
		return
	}
	_, _ = fmt.Fprintln(w, "=== Unread Messages Summary ===")
	for _, c := range chats {
		kind := "contact"
		if c.IsGroup {
			kind = "group"
		}
		muted := ""
		if c.IsMuted {
			muted = " (muted)"
		}
		_, _ = fmt.Fprintf(w, "\n[%s] %s%s\n", kind, c.Name, muted)
		_, _ = fmt.Fprintf(w, "  %d unread message(s)\n", c.UnreadCount)
		if c.LastMessage != "" {
			_, _ = fmt.Fprintf(w, "  Last message: %s\n", c.LastMessage)
		}
		if c.LastMessageTime != "" {
			_, _ = fmt.Fprintf(w, "  At: %s\n", c.LastMessageTime)
		}
	}
	_, _ = fmt.Fprintf(w, "\nTotal chats with unread messages: %d\n", len(chats))
}
