package focus

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/chatnotify/internal/platform"
	"go.uber.org/zap"
)

// Dismisser closes a shown notification by tag.
type Dismisser interface {
	Dismiss(tag string) error
}

// Handler reacts to notification clicks.
type Handler struct {
	windows *Windows
	surface Dismisser
	opener  platform.Opener
	appURL  string
	logger  *zap.Logger
}

// NewHandler creates a Handler. opener may be nil when the host cannot open
// windows.
func NewHandler(windows *Windows, surface Dismisser, opener platform.Opener, appURL string, logger *zap.Logger) *Handler {
	return &Handler{
		windows: windows,
		surface: surface,
		opener:  opener,
		appURL:  appURL,
		logger:  logger,
	}
}

// Reunite dismisses the notification for tag, then focuses the first window
// on the application URL, or opens a new one when none is open.
func (h *Handler) Reunite(ctx context.Context, tag string) error {
	if tag != "" {
		if err := h.surface.Dismiss(tag); err != nil {
			h.logger.Warn("dismiss notification failed", zap.String("tag", tag), zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, win := range h.windows.List(true) {
		if !matches(win.URL, h.appURL) {
			continue
		}
		if h.windows.Focus(win.ID) {
			h.logger.Info("focused window", zap.String("tag", tag), zap.String("window", win.ID))
			return nil
		}
	}

	if h.opener == nil {
		h.logger.Debug("no opener, click ignored", zap.String("tag", tag))
		return nil
	}
	if err := h.opener.OpenURL(h.appURL); err != nil {
		if errors.Is(err, platform.ErrUnsupported) {
			h.logger.Debug("opening windows unsupported, click ignored", zap.String("tag", tag))
			return nil
		}
		return fmt.Errorf("open %s: %w", h.appURL, err)
	}
	h.logger.Info("opened new window", zap.String("tag", tag), zap.String("url", h.appURL))
	return nil
}
