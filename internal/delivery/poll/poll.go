// Package poll implements the polling strategy.
//
// Each tick advances the cursor to the tick time before fetching, so a
// failed or slow fetch never causes the same window to be fetched twice.
// A failed window is skipped, not replayed.
package poll

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/logging"
	"github.com/matheus3301/chatnotify/internal/metrics"
	"github.com/matheus3301/chatnotify/internal/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Source fetches messages addressed to the session user.
type Source interface {
	// MessagesBetween returns messages created in (since, until] and not
	// authored by the session user.
	MessagesBetween(ctx context.Context, s model.Session, since, until time.Time) ([]model.IncomingMessage, error)
}

// Strategy polls a Source on a fixed interval.
type Strategy struct {
	source   Source
	resolver *delivery.Resolver
	sink     delivery.Sink
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(source Source, resolver *delivery.Resolver, sink delivery.Sink, interval time.Duration, logger *zap.Logger) *Strategy {
	return &Strategy{
		source:   source,
		resolver: resolver,
		sink:     sink,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Strategy) Name() string { return delivery.StrategyPoll }

// Start schedules polling for sess. The cursor starts at the activation time.
// Stopping the handle stops the scheduler; a tick already running finishes
// with a cancelled context.
func (s *Strategy) Start(ctx context.Context, sess model.Session) (delivery.Handle, error) {
	ctx, cancel := context.WithCancel(ctx)
	p := s.poller(sess, s.now())

	cronLog := logging.CronLogger{S: s.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { p.tick(ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule poll: %w", err)
	}
	c.Start()
	s.logger.Info("polling started", zap.String("user", sess.UserID), zap.Duration("interval", s.interval))

	return delivery.HandleFunc(func() {
		cancel()
		c.Stop()
	}), nil
}

func (s *Strategy) poller(sess model.Session, cursor time.Time) *poller {
	return &poller{strategy: s, session: sess, cursor: cursor}
}

type poller struct {
	strategy *Strategy

	mu      sync.Mutex
	session model.Session
	cursor  time.Time
}

func (p *poller) tick(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.strategy
	started := s.now()
	since := p.cursor
	p.cursor = started

	msgs, err := s.source.MessagesBetween(ctx, p.session, since, started)
	if err != nil {
		metrics.IncPollFailure()
		metrics.ObservePoll(started, s.now().Sub(started))
		s.logger.Warn("poll failed", zap.Time("since", since), zap.Error(err))
		return
	}

	slices.SortStableFunc(msgs, func(a, b model.IncomingMessage) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		r, ok, err := s.resolver.Resolve(ctx, p.session, msg)
		if err != nil {
			s.logger.Warn("resolve polled message failed", zap.String("message", msg.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		s.sink.Message(ctx, p.session, r, delivery.DeliverOptions{
			Strategy:            delivery.StrategyPoll,
			SuppressWhenFocused: true,
		})
	}
	metrics.ObservePoll(started, s.now().Sub(started))
}
