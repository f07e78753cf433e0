package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatnotify/internal/api"
	"github.com/matheus3301/chatnotify/internal/bus"
	"github.com/matheus3301/chatnotify/internal/config"
	"github.com/matheus3301/chatnotify/internal/delivery/push"
	"github.com/matheus3301/chatnotify/internal/focus"
	"github.com/matheus3301/chatnotify/internal/model"
	"github.com/matheus3301/chatnotify/internal/notifier"
	"github.com/matheus3301/chatnotify/internal/session"
	"github.com/matheus3301/chatnotify/internal/status"
	"github.com/matheus3301/chatnotify/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// shortHome keeps socket paths under the 104-char Unix socket limit on macOS.
func shortHome(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "cn-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("CHATNOTIFY_HOME", dir)
	return dir
}

func pushConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CHATNOTIFY_STRATEGY", "push")
	t.Setenv("CHATNOTIFY_NOTIFIER", "log")
	t.Setenv("CHATNOTIFY_LOG_LEVEL", "error")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func dial(t *testing.T, socketPath string) *api.WorkerClient {
	t.Helper()
	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return api.NewWorkerClient(conn)
}

func TestServerSocketPermissions(t *testing.T) {
	home := shortHome(t)
	sock := filepath.Join(home, "w.sock")

	b := bus.New()
	logger := zap.NewNop()
	strategy := push.New(nil, logger)
	registry := session.NewRegistry(strategy, status.NewMachine(b), &session.Gate{}, b, logger)
	windows := focus.NewWindows(b)
	svc := api.NewWorkerService("test", registry, strategy, nil, windows, b, nil, logger)

	srv, err := NewServer(Params{Profile: "test", SocketPath: sock}, logger, svc)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	go func() { _ = srv.Start() }()

	info, err := os.Stat(sock)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket permission = %o, want 0600", perm)
	}

	client := dial(t, sock)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := client.Status(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got := st.GetFields()["profile"].GetStringValue(); got != "test" {
		t.Errorf("profile = %q, want test", got)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	srv.Stop(stopCtx)
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	home := shortHome(t)
	cfg := pushConfig(t)
	sock := filepath.Join(home, "w.sock")

	app := fx.New(
		Module(Params{Profile: "test", Config: cfg, SocketPath: sock}),
	)
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := app.Stop(stopCtx); err != nil {
			t.Errorf("app.Stop() error = %v", err)
		}
	}()

	client := dial(t, sock)
	ctx, cancelCall := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCall()

	cmd, err := structpb.NewStruct(map[string]any{"type": "SET_USER", "userId": "u1", "token": "t"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Command(ctx, cmd); err != nil {
		t.Fatalf("Command(SET_USER) error = %v", err)
	}

	payload := []byte(`{"title":"Alice","body":"hello"}`)
	if _, err := client.Push(ctx, wrapperspb.Bytes(payload)); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	hist, err := client.History(ctx, wrapperspb.Int32(10))
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if n := len(hist.GetFields()["notifications"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("history has %d entries, want 1", n)
	}

	st, err := client.Status(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatal(err)
	}
	fields := st.GetFields()
	if got := fields["strategy"].GetStringValue(); got != "push" {
		t.Errorf("strategy = %q, want push", got)
	}
	if !fields["signed_in"].GetBoolValue() {
		t.Error("signed_in = false after SET_USER")
	}
}

func TestSecondWorkerRefusesProfile(t *testing.T) {
	home := shortHome(t)
	cfg := pushConfig(t)

	first := fx.New(Module(Params{Profile: "dup", Config: cfg, SocketPath: filepath.Join(home, "a.sock")}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first.Start() error = %v", err)
	}
	defer func() { _ = first.Stop(ctx) }()

	second := fx.New(Module(Params{Profile: "dup", Config: cfg, SocketPath: filepath.Join(home, "b.sock")}))
	if err := second.Err(); err == nil {
		_ = second.Stop(ctx)
		t.Fatal("second worker on the same profile started, want lock error")
	}
}

type clickSurface struct {
	clicks    chan notifier.Click
	dismissed chan string
}

func (s *clickSurface) Show(context.Context, model.Notification) error { return nil }
func (s *clickSurface) Dismiss(tag string) error {
	s.dismissed <- tag
	return nil
}
func (s *clickSurface) Clicks() <-chan notifier.Click { return s.clicks }
func (s *clickSurface) Shutdown() error               { return nil }

func TestBackgroundRoutesClicksToReunite(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	logger := zap.NewNop()
	windows := focus.NewWindows(b)
	id := windows.Report(focus.Window{URL: "https://app.example.com/chat/", Controlled: true})

	surface := &clickSurface{clicks: make(chan notifier.Click, 1), dismissed: make(chan string, 1)}
	handler := focus.NewHandler(windows, surface, nil, "https://app.example.com/chat/", logger)
	registry := session.NewRegistry(push.New(nil, logger), status.NewMachine(b), &session.Gate{}, b, logger)

	cfg := &config.Config{JournalMaxAge: time.Hour}
	bg := newBackground(cfg, registry, surface, handler, db, logger)
	if err := bg.start(); err != nil {
		t.Fatalf("start() error = %v", err)
	}
	defer bg.stop(context.Background())

	surface.clicks <- notifier.Click{Tag: "chat-1"}

	select {
	case tag := <-surface.dismissed:
		if tag != "chat-1" {
			t.Errorf("dismissed %q, want chat-1", tag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("click was not handled")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w, ok := windows.Get(id); ok && w.Focused {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("window was not focused after click")
}

func TestBackgroundPrunesOnStart(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	old := &store.Record{MessageID: "m1", ChatID: "c1", Tag: "c1", Title: "t", Body: "b", UserID: "u1", Strategy: "poll", ShownAt: time.Now().Add(-48 * time.Hour)}
	if _, err := db.Record(old); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	logger := zap.NewNop()
	surface := notifier.NewLog(logger)
	windows := focus.NewWindows(b)
	handler := focus.NewHandler(windows, surface, nil, "https://app.example.com/chat/", logger)
	registry := session.NewRegistry(push.New(nil, logger), status.NewMachine(b), &session.Gate{}, b, logger)

	bg := newBackground(&config.Config{JournalMaxAge: 24 * time.Hour}, registry, surface, handler, db, logger)
	if err := bg.start(); err != nil {
		t.Fatal(err)
	}
	defer bg.stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, err := db.Count(); err == nil && n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expired journal entry was not pruned")
}
