package notifier

import (
	"context"

	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

// Log writes notifications to the logger instead of the desktop.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log-only surface for headless hosts.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Show(_ context.Context, n model.Notification) error {
	l.logger.Info("notification",
		zap.String("tag", n.Tag),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.String("url", n.URL),
	)
	return nil
}

func (l *Log) Dismiss(tag string) error {
	l.logger.Debug("notification dismissed", zap.String("tag", tag))
	return nil
}

func (l *Log) Clicks() <-chan Click { return nil }
func (l *Log) Shutdown() error      { return nil }
