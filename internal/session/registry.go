// Package session owns the worker's single identity and its active delivery.
//
// Every transition is serialized by one mutex and stops the previous
// delivery handle before returning, so at most one strategy instance runs at
// any time and no work is left scheduled for a stale identity.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/chatnotify/internal/bus"
	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/model"
	"github.com/matheus3301/chatnotify/internal/status"
	"go.uber.org/zap"
)

// Registry holds the current Session and the delivery handle running for it.
type Registry struct {
	mu       sync.Mutex
	strategy delivery.Strategy
	machine  *status.Machine
	gate     *Gate
	bus      *bus.Bus
	logger   *zap.Logger

	session model.Session
	hasUser bool
	enabled bool
	epoch   uint64
	handle  delivery.Handle
	cancel  context.CancelFunc
}

// NewRegistry creates a registry with no identity. Delivery is enabled by default.
func NewRegistry(strategy delivery.Strategy, machine *status.Machine, gate *Gate, b *bus.Bus, logger *zap.Logger) *Registry {
	return &Registry{
		strategy: strategy,
		machine:  machine,
		gate:     gate,
		bus:      b,
		logger:   logger,
		enabled:  true,
	}
}

// SetUser installs an identity and (re)starts delivery for it. Repeating the
// current identity while delivery runs is a no-op.
func (r *Registry) SetUser(ctx context.Context, userID, token string) error {
	if userID == "" {
		return ErrMissingUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasUser && r.session.UserID == userID && r.session.Token == token && (r.handle != nil || !r.enabled) {
		r.logger.Debug("set user: identity unchanged", zap.String("user", userID))
		return nil
	}

	r.stopLocked()
	r.session = model.Session{UserID: userID, Token: token}
	r.hasUser = true
	r.logger.Info("identity set", zap.String("user", userID))

	if !r.enabled {
		r.setState(status.Paused)
		return nil
	}
	return r.startLocked(ctx)
}

// SignOut stops delivery and forgets the identity before returning.
func (r *Registry) SignOut() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	user := r.session.UserID
	r.session = model.Session{}
	r.hasUser = false
	r.setState(status.Idle)

	if user != "" {
		r.logger.Info("signed out", zap.String("user", user))
		if r.bus != nil {
			r.bus.Publish(bus.NewEvent(bus.KindSessionSignedOut, user))
		}
	}
}

// Enable resumes delivery when an identity is present.
func (r *Registry) Enable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled = true
	if !r.hasUser || r.handle != nil {
		return nil
	}
	return r.startLocked(ctx)
}

// Disable stops delivery and keeps the identity.
func (r *Registry) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled = false
	r.stopLocked()
	if r.hasUser {
		r.setState(status.Paused)
	}
}

// Current returns the active identity.
func (r *Registry) Current() (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.hasUser
}

// Enabled reports whether delivery is enabled.
func (r *Registry) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// State returns the registry's delivery state.
func (r *Registry) State() status.State {
	return r.machine.Current()
}

// Strategy returns the configured strategy name.
func (r *Registry) Strategy() string {
	return r.strategy.Name()
}

// Accepts reports whether work started for epoch is still current.
func (r *Registry) Accepts(epoch uint64) bool {
	return r.gate.Accepts(epoch)
}

// startLocked runs the strategy under a context detached from the caller's
// cancellation; the handle outlives the command that started it.
func (r *Registry) startLocked(ctx context.Context) error {
	r.session.Epoch = r.epoch + 1
	r.epoch = r.session.Epoch

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle, err := r.strategy.Start(runCtx, r.session)
	if err != nil {
		cancel()
		r.setState(status.Paused)
		r.logger.Error("start delivery failed",
			zap.String("strategy", r.strategy.Name()),
			zap.String("user", r.session.UserID),
			zap.Error(err))
		return fmt.Errorf("start %s delivery: %w", r.strategy.Name(), err)
	}

	r.handle = handle
	r.cancel = cancel
	r.gate.open(r.session.Epoch)
	r.setState(status.Delivering)
	r.logger.Info("delivery started",
		zap.String("strategy", r.strategy.Name()),
		zap.String("user", r.session.UserID),
		zap.Uint64("epoch", r.session.Epoch))
	return nil
}

func (r *Registry) stopLocked() {
	r.gate.close()
	if r.handle == nil {
		return
	}
	r.handle.Stop()
	r.cancel()
	r.handle = nil
	r.cancel = nil
	r.logger.Info("delivery stopped", zap.String("strategy", r.strategy.Name()))
}

func (r *Registry) setState(to status.State) {
	if to == status.Idle && r.machine.Current() == status.Idle {
		return
	}
	if err := r.machine.Transition(to); err != nil {
		r.logger.Error("state transition rejected", zap.Error(err))
	}
}
