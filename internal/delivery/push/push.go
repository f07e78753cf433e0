// Package push implements the push-receive strategy: payloads are delivered
// by the environment and shown as-is, without participant resolution.
package push

import (
	"context"
	"sync"

	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

// Strategy accepts push payloads while a session handle is active.
type Strategy struct {
	mu     sync.Mutex
	active *model.Session
	sink   delivery.Sink
	logger *zap.Logger
}

func New(sink delivery.Sink, logger *zap.Logger) *Strategy {
	return &Strategy{sink: sink, logger: logger}
}

func (s *Strategy) Name() string { return delivery.StrategyPush }

// Start makes s the session push payloads are attributed to.
func (s *Strategy) Start(_ context.Context, sess model.Session) (delivery.Handle, error) {
	s.mu.Lock()
	s.active = &sess
	s.mu.Unlock()

	return delivery.HandleFunc(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.active != nil && s.active.Epoch == sess.Epoch {
			s.active = nil
		}
	}), nil
}

// Receive hands payload to the sink. It reports false when no session is
// active and the payload was dropped.
func (s *Strategy) Receive(ctx context.Context, payload []byte) bool {
	s.mu.Lock()
	var sess model.Session
	active := s.active != nil
	if active {
		sess = *s.active
	}
	s.mu.Unlock()

	if !active {
		s.logger.Debug("push dropped, no active session", zap.Int("bytes", len(payload)))
		return false
	}
	s.sink.Push(ctx, sess, payload)
	return true
}
