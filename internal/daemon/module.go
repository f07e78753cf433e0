package daemon

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatnotify/internal/api"
	"github.com/matheus3301/chatnotify/internal/backend"
	"github.com/matheus3301/chatnotify/internal/bus"
	"github.com/matheus3301/chatnotify/internal/config"
	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/delivery/poll"
	"github.com/matheus3301/chatnotify/internal/delivery/push"
	"github.com/matheus3301/chatnotify/internal/delivery/realtime"
	"github.com/matheus3301/chatnotify/internal/dispatch"
	"github.com/matheus3301/chatnotify/internal/focus"
	"github.com/matheus3301/chatnotify/internal/lock"
	"github.com/matheus3301/chatnotify/internal/logging"
	"github.com/matheus3301/chatnotify/internal/notifier"
	"github.com/matheus3301/chatnotify/internal/paths"
	"github.com/matheus3301/chatnotify/internal/platform"
	"github.com/matheus3301/chatnotify/internal/policy"
	"github.com/matheus3301/chatnotify/internal/session"
	"github.com/matheus3301/chatnotify/internal/status"
	"github.com/matheus3301/chatnotify/internal/store"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const appName = "chatnotify"

// Params holds the resolved profile and configuration passed to the fx module.
type Params struct {
	Profile    string
	Config     *config.Config
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the worker, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideGate,
			providePolicy,
			provideSurface,
			provideWindows,
			provideOpener,
			provideReuniter,
			provideDispatcher,
			provideREST,
			provideStrategy,
			provideRegistry,
			provideWorkerService,
			NewServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("no configuration supplied")
	}
	return p.Config, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(paths.LogPath(p.Profile), p.Profile, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := paths.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(paths.LockPath(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore takes the lock so the journal is never opened by a second worker.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := paths.JournalPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("journal initialized", zap.String("path", dbPath))
	return db, nil
}

func provideGate() *session.Gate {
	return &session.Gate{}
}

func providePolicy(cfg *config.Config) *policy.Policy {
	return policy.New(policy.Options{
		AppURL:       cfg.AppURL,
		Icon:         cfg.IconURL(),
		TitleEmblem:  cfg.TitleEmblem,
		BodyMaxChars: cfg.BodyMaxChars,
		Ellipsis:     cfg.Ellipsis,
		DefaultTitle: cfg.DefaultTitle,
		DefaultBody:  cfg.DefaultBody,
		PushTag:      cfg.PushTag,
	})
}

func provideSurface(cfg *config.Config, logger *zap.Logger) (notifier.Surface, error) {
	s, err := notifier.New(cfg.Notifier, appName, logger.Named("notifier"))
	if err != nil {
		return nil, err
	}
	logger.Info("notification surface ready", zap.String("kind", fmt.Sprintf("%T", s)))
	return s, nil
}

func provideWindows(b *bus.Bus) *focus.Windows {
	return focus.NewWindows(b)
}

func provideOpener(logger *zap.Logger) platform.Opener {
	return platform.NewOpener(logger.Named("opener"))
}

func provideReuniter(windows *focus.Windows, surface notifier.Surface, opener platform.Opener, cfg *config.Config, logger *zap.Logger) *focus.Handler {
	return focus.NewHandler(windows, surface, opener, cfg.AppURL, logger.Named("focus"))
}

func provideDispatcher(gate *session.Gate, p *policy.Policy, surface notifier.Surface, db *store.DB, windows *focus.Windows, b *bus.Bus, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(gate, p, surface, db, windows, b, logger.Named("dispatch"))
}

// provideREST returns nil when no REST backend is configured (push strategy).
func provideREST(cfg *config.Config, logger *zap.Logger) (*backend.REST, error) {
	if cfg.Backend.RESTURL == "" {
		return nil, nil
	}
	return backend.NewREST(backend.RESTOptions{
		BaseURL:           cfg.Backend.RESTURL,
		APIKey:            cfg.Backend.APIKey,
		MessagesTable:     cfg.Backend.MessagesTable,
		ChatsTable:        cfg.Backend.ChatsTable,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Timeout:           cfg.Backend.Timeout,
	}, logger.Named("rest"))
}

type strategyResult struct {
	fx.Out

	Strategy delivery.Strategy
	Push     api.PushReceiver
}

// provideStrategy builds the one configured strategy. Push is nil unless the
// push strategy is selected.
func provideStrategy(cfg *config.Config, sink *dispatch.Dispatcher, rest *backend.REST, logger *zap.Logger) (strategyResult, error) {
	logger = logger.Named("delivery")
	switch cfg.Strategy {
	case delivery.StrategyPush:
		s := push.New(sink, logger)
		return strategyResult{Strategy: s, Push: s}, nil
	case delivery.StrategyRealtime:
		rt, err := backend.NewRealtime(backend.RealtimeOptions{
			URL:       cfg.Backend.RealtimeURL,
			APIKey:    cfg.Backend.APIKey,
			Schema:    cfg.Backend.Schema,
			Table:     cfg.Backend.MessagesTable,
			Heartbeat: cfg.Backend.Heartbeat,
		}, logger.Named("realtime"))
		if err != nil {
			return strategyResult{}, err
		}
		s := realtime.New(realtime.BackendFeed(rt), delivery.NewResolver(rest), sink, logger)
		return strategyResult{Strategy: s}, nil
	case delivery.StrategyPoll:
		s := poll.New(rest, delivery.NewResolver(rest), sink, cfg.PollInterval, logger)
		return strategyResult{Strategy: s}, nil
	default:
		return strategyResult{}, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
}

func provideRegistry(strategy delivery.Strategy, m *status.Machine, gate *session.Gate, b *bus.Bus, logger *zap.Logger) *session.Registry {
	return session.NewRegistry(strategy, m, gate, b, logger.Named("session"))
}

func provideWorkerService(p Params, registry *session.Registry, pushRecv api.PushReceiver, reuniter *focus.Handler, windows *focus.Windows, b *bus.Bus, db *store.DB, logger *zap.Logger) *api.WorkerService {
	return api.NewWorkerService(p.Profile, registry, pushRecv, reuniter, windows, b, db, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, registry *session.Registry, surface notifier.Surface, reuniter *focus.Handler, db *store.DB, cfg *config.Config, logger *zap.Logger) {
	bg := newBackground(cfg, registry, surface, reuniter, db, logger)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := bg.start(); err != nil {
				return err
			}
			notifyReady(logger)
			logger.Info("worker started",
				zap.String("strategy", registry.Strategy()),
				zap.String("app_url", cfg.AppURL))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			notifyStopping(logger)
			bg.stop(ctx)
			registry.SignOut()
			srv.Stop(ctx)
			if err := surface.Shutdown(); err != nil {
				logger.Warn("error closing notification surface", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing journal", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("worker stopped")
			return nil
		},
	})
}
