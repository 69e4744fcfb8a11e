package scrape

import "fmt"

// Locators is the locator profile: every selector the scraper relies on to
// read the rendered WhatsApp Web markup. The markup is an unversioned
// external contract, so all of it lives here.
type Locators struct {
	FilterTabs   string
	FilterButton string // fmt pattern taking the mode, e.g. "#%s-filter"

	ChatList string
	ChatItem string

	LastMessage     string
	LastMessageTime string
	GroupMarker     string
	MutedMarker     string

	// SearchOpen is tried in order; the first that can be clicked wins.
	SearchOpen    []string
	SearchInput   string
	SearchResults string
	SearchToggle  string

	MessagePane      string
	MessageNode      string
	OutgoingClass    string
	MessageText      string
	MessageMeta      string
	PrePlainTextAttr string

	QRCanvas  string
	QRPayload string
}

// DefaultLocators matches the WhatsApp Web markup as of this writing.
func DefaultLocators() Locators {
	return Locators{
		FilterTabs:   `[role="tablist"][aria-label="chat-list-filters"]`,
		FilterButton: "#%s-filter",

		ChatList: `div[role="grid"][aria-label="Chat list"]`,
		ChatItem: `div[role="listitem"]`,

		LastMessage:     `.x78zum5.x1cy8zhl, [data-testid="last-message"]`,
		LastMessageTime: `._ak8i, [data-testid="last-message-time"]`,
		GroupMarker:     `[data-testid="group"], [data-icon="default-group"]`,
		MutedMarker:     `[data-testid="muted"], [data-icon="muted"]`,

		SearchOpen: []string{
			`[data-testid="chat-list-search"]`,
			`button[aria-label="Search or start new chat"]`,
		},
		SearchInput:   `div[contenteditable="true"][data-tab="3"]`,
		SearchResults: `#pane-side`,
		SearchToggle:  `button[aria-label="Cancel search"]`,

		MessagePane:      `div[role="application"]`,
		MessageNode:      `div.message-in, div.message-out`,
		OutgoingClass:    "message-out",
		MessageText:      `span.selectable-text`,
		MessageMeta:      `[data-testid="msg-meta"]`,
		PrePlainTextAttr: "data-pre-plain-text",

		QRCanvas:  `canvas[aria-label="Scan this QR code to link a device!"]`,
		QRPayload: `div[data-ref]`,
	}
}

// FilterButtonFor returns the selector of the filter button for mode.
func (l Locators) FilterButtonFor(mode FilterMode) string {
	return fmt.Sprintf(l.FilterButton, mode)
}
