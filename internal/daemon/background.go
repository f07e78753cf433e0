package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/matheus3301/chatnotify/internal/config"
	"github.com/matheus3301/chatnotify/internal/credwatch"
	"github.com/matheus3301/chatnotify/internal/focus"
	"github.com/matheus3301/chatnotify/internal/metrics"
	"github.com/matheus3301/chatnotify/internal/notifier"
	"github.com/matheus3301/chatnotify/internal/session"
	"github.com/matheus3301/chatnotify/internal/store"
	"go.uber.org/zap"
)

const pruneInterval = time.Hour

// background runs the worker's long-lived loops: notification clicks, the
// credentials watcher, journal pruning and the metrics endpoint.
type background struct {
	cfg      *config.Config
	registry *session.Registry
	surface  notifier.Surface
	reuniter *focus.Handler
	db       *store.DB
	logger   *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *http.Server
}

func newBackground(cfg *config.Config, registry *session.Registry, surface notifier.Surface, reuniter *focus.Handler, db *store.DB, logger *zap.Logger) *background {
	return &background{
		cfg:      cfg,
		registry: registry,
		surface:  surface,
		reuniter: reuniter,
		db:       db,
		logger:   logger,
	}
}

func (b *background) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	if clicks := b.surface.Clicks(); clicks != nil {
		b.goRun(func() { b.clickLoop(ctx, clicks) })
	}

	b.goRun(func() { b.pruneLoop(ctx) })

	if path := b.cfg.CredsFile; path != "" {
		w := credwatch.New(path, b.registry, b.logger.Named("credwatch"))
		b.goRun(func() {
			if err := w.Run(ctx); err != nil {
				b.logger.Error("credentials watcher stopped", zap.Error(err))
			}
		})
	}

	if addr := b.cfg.MetricsAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			cancel()
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		b.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		b.goRun(func() {
			if err := b.metrics.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.logger.Error("metrics server error", zap.Error(err))
			}
		})
		b.logger.Info("metrics endpoint listening", zap.String("addr", lis.Addr().String()))
	}
	return nil
}

func (b *background) stop(ctx context.Context) {
	if b.metrics != nil {
		if err := b.metrics.Shutdown(ctx); err != nil {
			b.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *background) goRun(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *background) clickLoop(ctx context.Context, clicks <-chan notifier.Click) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-clicks:
			if !ok {
				return
			}
			if err := b.reuniter.Reunite(ctx, c.Tag); err != nil {
				b.logger.Warn("reunite failed", zap.String("tag", c.Tag), zap.Error(err))
			}
		}
	}
}

func (b *background) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		b.prune()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *background) prune() {
	cutoff := time.Now().Add(-b.cfg.JournalMaxAge)
	n, err := b.db.Prune(cutoff)
	if err != nil {
		b.logger.Warn("journal prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		b.logger.Info("journal pruned", zap.Int64("rows", n), zap.Time("before", cutoff))
	}
}

// notifyReady tells systemd the worker is up. Outside systemd it does nothing.
func notifyReady(logger *zap.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug("sd_notify ready failed", zap.Error(err))
	}
}

func notifyStopping(logger *zap.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		logger.Debug("sd_notify stopping failed", zap.Error(err))
	}
}
