package notifier

import (
	"context"
	"strings"

	"github.com/gen2brain/beeep"
	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

// Beeep is the portable fallback surface. It cannot replace or dismiss
// notifications and reports no clicks.
type Beeep struct {
	logger *zap.Logger
	notify func(title, message string, icon string) error
}

// NewBeeep creates a beeep-backed surface.
func NewBeeep(logger *zap.Logger) *Beeep {
	return &Beeep{
		logger: logger,
		notify: func(title, message string, icon string) error {
			return beeep.Notify(title, message, icon)
		},
	}
}

func (b *Beeep) Show(_ context.Context, n model.Notification) error {
	icon := n.Icon
	if strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") {
		icon = ""
	}
	return b.notify(n.Title, n.Body, icon)
}

func (b *Beeep) Dismiss(string) error { return nil }
func (b *Beeep) Clicks() <-chan Click { return nil }
func (b *Beeep) Shutdown() error      { return nil }
