// Package credwatch hands a previously issued identity to the registry
// through a credentials file: {"userId": "...", "token": "..."}.
// Writing the file sets the user; removing it signs out.
package credwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/matheus3301/chatnotify/internal/session"
	"go.uber.org/zap"
)

const defaultDebounce = 250 * time.Millisecond

// Target receives the commands derived from the file.
type Target interface {
	Handle(ctx context.Context, cmd session.Command) error
}

// Watcher watches one credentials file.
type Watcher struct {
	path     string
	target   Target
	logger   *zap.Logger
	debounce time.Duration

	applied bool
}

func New(path string, target Target, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     path,
		target:   target,
		logger:   logger.With(zap.String("credentials", path)),
		debounce: defaultDebounce,
	}
}

// Run applies the current file, then follows changes until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if _, err := os.Stat(w.path); err == nil {
		w.apply(ctx)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			w.logger.Warn("credentials watch error", zap.Error(err))
		case <-timer.C:
			w.apply(ctx)
		}
	}
}

func (w *Watcher) apply(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		if w.applied {
			w.applied = false
			w.handle(ctx, session.Command{Type: session.CmdSignOut})
		}
		return
	}
	if err != nil {
		w.logger.Warn("read credentials failed", zap.Error(err))
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		w.logger.Warn("malformed credentials file", zap.Error(err))
		return
	}
	fields["type"] = session.CmdSetUser
	cmd, err := session.ParseCommand(fields)
	if err != nil {
		w.logger.Warn("invalid credentials", zap.Error(err))
		return
	}
	w.applied = true
	w.handle(ctx, cmd)
}

func (w *Watcher) handle(ctx context.Context, cmd session.Command) {
	if err := w.target.Handle(ctx, cmd); err != nil {
		w.logger.Warn("apply credentials failed", zap.String("command", cmd.Type), zap.Error(err))
		return
	}
	w.logger.Info("credentials applied", zap.String("command", cmd.Type), zap.String("user", cmd.UserID))
}
