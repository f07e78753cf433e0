package bus

import "time"

// Event kinds published by the worker. Subscribers filter by prefix
// ("session.", "notification.", "window.").
const (
	KindStatusChanged          = "session.status_changed"
	KindSessionSignedOut       = "session.signed_out"
	KindNotificationShown      = "notification.shown"
	KindNotificationSuppressed = "notification.suppressed"
	KindWindowFocus            = "window.focus"
	KindWindowOpened           = "window.opened"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
