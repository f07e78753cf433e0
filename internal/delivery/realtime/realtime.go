// Package realtime implements the change-feed strategy: one subscription to
// message inserts per session, each event resolved and delivered in turn.
package realtime

import (
	"context"

	"github.com/matheus3301/chatnotify/internal/backend"
	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

// Subscription is an open change feed.
type Subscription interface {
	// Close requests teardown without waiting for it.
	Close()
}

// Feed opens change-feed subscriptions for message inserts.
type Feed interface {
	Subscribe(ctx context.Context, s model.Session, handler func(context.Context, model.IncomingMessage)) Subscription
}

// BackendFeed adapts a backend.Realtime client to Feed.
func BackendFeed(rt *backend.Realtime) Feed {
	return backendFeed{rt: rt}
}

type backendFeed struct {
	rt *backend.Realtime
}

func (f backendFeed) Subscribe(ctx context.Context, s model.Session, handler func(context.Context, model.IncomingMessage)) Subscription {
	return f.rt.Subscribe(ctx, s, handler)
}

// Strategy delivers messages from a realtime subscription.
type Strategy struct {
	feed     Feed
	resolver *delivery.Resolver
	sink     delivery.Sink
	logger   *zap.Logger
}

func New(feed Feed, resolver *delivery.Resolver, sink delivery.Sink, logger *zap.Logger) *Strategy {
	return &Strategy{feed: feed, resolver: resolver, sink: sink, logger: logger}
}

func (s *Strategy) Name() string { return delivery.StrategyRealtime }

// Start opens the subscription for sess. Stopping the handle closes it.
func (s *Strategy) Start(ctx context.Context, sess model.Session) (delivery.Handle, error) {
	sub := s.feed.Subscribe(ctx, sess, func(ctx context.Context, msg model.IncomingMessage) {
		s.handle(ctx, sess, msg)
	})
	return delivery.HandleFunc(sub.Close), nil
}

func (s *Strategy) handle(ctx context.Context, sess model.Session, msg model.IncomingMessage) {
	r, ok, err := s.resolver.Resolve(ctx, sess, msg)
	if err != nil {
		s.logger.Warn("resolve realtime message failed", zap.String("message", msg.ID), zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("realtime message skipped", zap.String("message", msg.ID), zap.String("chat", msg.ChatID))
		return
	}
	s.sink.Message(ctx, sess, r, delivery.DeliverOptions{Strategy: delivery.StrategyRealtime})
}
