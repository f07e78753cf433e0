// Package delivery defines how the worker learns about new messages.
//
// A Strategy is activated by the session registry for one Session at a time
// and produces messages into a Sink. Exactly one strategy is configured per
// deployment: push-receive, realtime subscription or polling.
package delivery

import (
	"context"

	"github.com/matheus3301/chatnotify/internal/model"
)

// Strategy names used in configuration, logs and metrics.
const (
	StrategyPush     = "push"
	StrategyRealtime = "realtime"
	StrategyPoll     = "poll"
)

// Strategy starts delivery for a session.
type Strategy interface {
	Name() string
	// Start activates delivery for s. The returned Handle must be stopped
	// before Start is called again.
	Start(ctx context.Context, s model.Session) (Handle, error)
}

// Handle stops an active delivery. Stop must prevent any further scheduled
// work from starting before it returns; teardown of remote resources
// (e.g. a subscription) may complete asynchronously.
type Handle interface {
	Stop()
}

// HandleFunc adapts a function to Handle.
type HandleFunc func()

func (f HandleFunc) Stop() { f() }

// DeliverOptions tune how the sink treats a message.
type DeliverOptions struct {
	Strategy string
	// SuppressWhenFocused drops the notification when an application window
	// on the canonical URL currently has focus.
	SuppressWhenFocused bool
}

// Sink receives normalized delivery output. Implementations must tolerate
// calls for sessions that are no longer current.
type Sink interface {
	Message(ctx context.Context, s model.Session, r model.Resolved, opts DeliverOptions)
	Push(ctx context.Context, s model.Session, payload []byte)
}
