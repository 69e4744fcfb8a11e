package bus

import "time"

// Event kinds published by the daemon. Subscribers filter by prefix
// ("scrape.", "session.").
const (
	KindStatusChanged = "session.status_changed"
	KindQRGenerated   = "session.qr_generated"
	KindAuthenticated = "session.authenticated"
	KindRunStarted    = "scrape.run_started"
	KindChatVisited   = "scrape.chat_visited"
	KindRunFinished   = "scrape.run_finished"
	KindFilterChanged = "scrape.filter_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
