// Package notifier raises notifications on the desktop. A Surface keeps one
// visible notification per tag: showing a notification with a tag that is
// still on screen replaces it.
package notifier

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

// Surface kinds accepted by New.
const (
	KindAuto  = "auto"
	KindDBus  = "dbus"
	KindBeeep = "beeep"
	KindLog   = "log"
)

// Click is a user interaction with a shown notification.
type Click struct {
	Tag string
	URL string
}

// Surface is an OS notification surface.
type Surface interface {
	// Show displays n. It does not wait for the user to see it.
	Show(ctx context.Context, n model.Notification) error
	// Dismiss closes the notification currently shown for tag, if any.
	Dismiss(tag string) error
	// Clicks delivers interactions; surfaces without click support return nil.
	Clicks() <-chan Click
	Shutdown() error
}

// New builds the surface for kind. "auto" prefers D-Bus and falls back to beeep.
func New(kind, appName string, logger *zap.Logger) (Surface, error) {
	switch kind {
	case KindDBus:
		return NewDBus(appName, logger)
	case KindBeeep:
		return NewBeeep(logger), nil
	case KindLog:
		return NewLog(logger), nil
	case KindAuto, "":
		s, err := NewDBus(appName, logger)
		if err == nil {
			return s, nil
		}
		logger.Info("D-Bus notifications unavailable, using beeep", zap.Error(err))
		return NewBeeep(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", kind)
	}
}
