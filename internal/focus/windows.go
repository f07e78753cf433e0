// Package focus tracks the application's open windows and reunites the user
// with one of them when a notification is clicked.
package focus

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatnotify/internal/bus"
)

// Window is an application window that reported itself to the worker.
// Controlled is false for windows that are open but not yet attached to the
// worker's command channel.
type Window struct {
	ID         string
	URL        string
	Focused    bool
	Controlled bool
	SeenAt     time.Time
}

// FocusRequest is the payload of bus.KindWindowFocus events.
type FocusRequest struct {
	WindowID string
	URL      string
}

// Windows is the registry of open application windows, in the order they
// first reported.
type Windows struct {
	mu      sync.Mutex
	bus     *bus.Bus
	byID    map[string]*Window
	order   []string
	nowFunc func() time.Time
}

func NewWindows(b *bus.Bus) *Windows {
	return &Windows{
		bus:     b,
		byID:    make(map[string]*Window),
		nowFunc: time.Now,
	}
}

// Report adds or updates a window and returns its id, generating one when
// win.ID is empty. At most one window is focused at a time.
func (w *Windows) Report(win Window) string {
	if win.ID == "" {
		win.ID = uuid.NewString()
	}
	win.SeenAt = w.nowFunc()

	w.mu.Lock()
	_, known := w.byID[win.ID]
	if !known {
		w.order = append(w.order, win.ID)
	}
	if win.Focused {
		w.blurLocked()
	}
	stored := win
	w.byID[win.ID] = &stored
	w.mu.Unlock()

	if !known && w.bus != nil {
		w.bus.Publish(bus.NewEvent(bus.KindWindowOpened, win))
	}
	return win.ID
}

// Remove forgets a window. It reports whether the window was known.
func (w *Windows) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.byID[id]; !ok {
		return false
	}
	delete(w.byID, id)
	w.order = slices.DeleteFunc(w.order, func(s string) bool { return s == id })
	return true
}

// Get returns the window with id.
func (w *Windows) Get(id string) (Window, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	win, ok := w.byID[id]
	if !ok {
		return Window{}, false
	}
	return *win, true
}

// List returns windows in report order. Uncontrolled windows are skipped
// unless includeUncontrolled is set.
func (w *Windows) List(includeUncontrolled bool) []Window {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Window, 0, len(w.order))
	for _, id := range w.order {
		win := w.byID[id]
		if !win.Controlled && !includeUncontrolled {
			continue
		}
		out = append(out, *win)
	}
	return out
}

// FocusedAt reports whether a focused window is showing a page under appURL.
func (w *Windows) FocusedAt(appURL string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, win := range w.byID {
		if win.Focused && matches(win.URL, appURL) {
			return true
		}
	}
	return false
}

// Focus marks the window focused and asks it, through the bus, to come to
// the foreground.
func (w *Windows) Focus(id string) bool {
	w.mu.Lock()
	win, ok := w.byID[id]
	if ok {
		w.blurLocked()
		win.Focused = true
	}
	var req FocusRequest
	if ok {
		req = FocusRequest{WindowID: win.ID, URL: win.URL}
	}
	w.mu.Unlock()

	if ok && w.bus != nil {
		w.bus.Publish(bus.NewEvent(bus.KindWindowFocus, req))
	}
	return ok
}

func (w *Windows) blurLocked() {
	for _, win := range w.byID {
		win.Focused = false
	}
}

func matches(windowURL, appURL string) bool {
	return appURL != "" && strings.HasPrefix(windowURL, appURL)
}
