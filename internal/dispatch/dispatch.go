// Package dispatch turns delivery output into shown notifications.
package dispatch

import (
	"context"
	"sync"

	"github.com/matheus3301/chatnotify/internal/bus"
	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/metrics"
	"github.com/matheus3301/chatnotify/internal/model"
	"github.com/matheus3301/chatnotify/internal/policy"
	"github.com/matheus3301/chatnotify/internal/store"
	"go.uber.org/zap"
)

// Suppression reasons added to the policy's.
const (
	ReasonStale     = "stale_session"
	ReasonDuplicate = "duplicate"
)

// Gate reports whether work for a session epoch is still current. Hold keeps
// the epoch current until release, so a sign-out cannot complete in between.
type Gate interface {
	Accepts(epoch uint64) bool
	Hold(epoch uint64) (release func(), ok bool)
}

// FocusState reports whether an application window is focused.
type FocusState interface {
	FocusedAt(appURL string) bool
}

// Shower displays notifications.
type Shower interface {
	Show(ctx context.Context, n model.Notification) error
}

// Journal remembers shown notifications.
type Journal interface {
	Seen(messageID string) (bool, error)
	Record(r *store.Record) (bool, error)
}

// Suppressed is the payload of bus.KindNotificationSuppressed events.
type Suppressed struct {
	MessageID string
	ChatID    string
	Reason    string
}

// Dispatcher implements delivery.Sink. Requests are processed one at a time.
type Dispatcher struct {
	mu      sync.Mutex
	gate    Gate
	policy  *policy.Policy
	surface Shower
	journal Journal
	focus   FocusState
	bus     *bus.Bus
	logger  *zap.Logger
}

var _ delivery.Sink = (*Dispatcher)(nil)

func New(gate Gate, p *policy.Policy, surface Shower, journal Journal, focus FocusState, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		gate:    gate,
		policy:  p,
		surface: surface,
		journal: journal,
		focus:   focus,
		bus:     b,
		logger:  logger,
	}
}

// Message handles a resolved chat message.
func (d *Dispatcher) Message(ctx context.Context, s model.Session, r model.Resolved, opts delivery.DeliverOptions) {
	d.mu.Lock()
	defer d.mu.Unlock()

	msg := r.Message
	if !d.gate.Accepts(s.Epoch) {
		d.suppress(msg, ReasonStale)
		return
	}

	focused := opts.SuppressWhenFocused && d.focus != nil && d.focus.FocusedAt(d.policy.AppURL())
	if reason := d.policy.Suppress(s, msg, focused); reason != "" {
		d.suppress(msg, reason)
		return
	}

	seen, err := d.journal.Seen(msg.ID)
	if err != nil {
		d.logger.Warn("journal lookup failed", zap.String("message", msg.ID), zap.Error(err))
	}
	if seen {
		d.suppress(msg, ReasonDuplicate)
		return
	}

	d.show(ctx, s, d.policy.Render(r), opts.Strategy)
}

// Push handles a pre-formatted push payload.
func (d *Dispatcher) Push(ctx context.Context, s model.Session, payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.gate.Accepts(s.Epoch) {
		d.suppress(model.IncomingMessage{}, ReasonStale)
		return
	}
	d.show(ctx, s, d.policy.RenderPush(payload), delivery.StrategyPush)
}

func (d *Dispatcher) show(ctx context.Context, s model.Session, n model.Notification, strategy string) {
	// Lookups may have taken a while; sign-out must win over a late result.
	// The hold spans Show so SignOut returns only once the surface is done.
	release, ok := d.gate.Hold(s.Epoch)
	if !ok {
		d.suppress(model.IncomingMessage{ID: n.MessageID, ChatID: n.ChatID}, ReasonStale)
		return
	}
	err := d.surface.Show(ctx, n)
	release()
	if err != nil {
		d.logger.Warn("show notification failed", zap.String("tag", n.Tag), zap.Error(err))
		return
	}

	if _, err := d.journal.Record(&store.Record{
		MessageID: n.MessageID,
		ChatID:    n.ChatID,
		Tag:       n.Tag,
		Title:     n.Title,
		Body:      n.Body,
		UserID:    s.UserID,
		Strategy:  strategy,
	}); err != nil {
		d.logger.Warn("journal record failed", zap.String("tag", n.Tag), zap.Error(err))
	}

	metrics.IncShown(strategy)
	if d.bus != nil {
		d.bus.Publish(bus.NewEvent(bus.KindNotificationShown, n))
	}
	d.logger.Debug("notification shown",
		zap.String("tag", n.Tag),
		zap.String("message", n.MessageID),
		zap.String("strategy", strategy))
}

func (d *Dispatcher) suppress(msg model.IncomingMessage, reason string) {
	metrics.IncSuppressed(reason)
	if d.bus != nil {
		d.bus.Publish(bus.NewEvent(bus.KindNotificationSuppressed, Suppressed{
			MessageID: msg.ID,
			ChatID:    msg.ChatID,
			Reason:    reason,
		}))
	}
	d.logger.Debug("notification suppressed",
		zap.String("message", msg.ID),
		zap.String("reason", reason))
}
