package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

const (
	dbusDest      = "org.freedesktop.Notifications"
	dbusPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	dbusIface     = "org.freedesktop.Notifications"
	defaultAction = "default"
	fallbackIcon  = "mail-message-new"
)

// busObject is the subset of dbus.BusObject used here.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// DBus shows notifications through org.freedesktop.Notifications.
// Tags map to server notification ids so a repeated tag is sent with
// replaces_id; the "default" action is reported as a click.
type DBus struct {
	appName string
	conn    *dbus.Conn
	obj     busObject
	logger  *zap.Logger

	mu    sync.Mutex
	byTag map[string]uint32
	byID  map[uint32]model.Notification

	signals chan *dbus.Signal
	clicks  chan Click
	done    chan struct{}
	once    sync.Once
}

// NewDBus connects to the session bus and subscribes to notification signals.
func NewDBus(appName string, logger *zap.Logger) (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusPath),
		dbus.WithMatchInterface(dbusIface),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("match notification signals: %w", err)
	}

	d := newDBus(appName, conn.Object(dbusDest, dbusPath), logger)
	d.conn = conn
	conn.Signal(d.signals)
	go d.loop()
	return d, nil
}

func newDBus(appName string, obj busObject, logger *zap.Logger) *DBus {
	return &DBus{
		appName: appName,
		obj:     obj,
		logger:  logger,
		byTag:   make(map[string]uint32),
		byID:    make(map[uint32]model.Notification),
		signals: make(chan *dbus.Signal, 16),
		clicks:  make(chan Click, 16),
		done:    make(chan struct{}),
	}
}

// Show sends Notify, replacing the notification previously shown for n.Tag.
func (d *DBus) Show(ctx context.Context, n model.Notification) error {
	d.mu.Lock()
	replaces := d.byTag[n.Tag]
	d.mu.Unlock()

	hints := map[string]dbus.Variant{
		"category": dbus.MakeVariant("im.received"),
		"urgency":  dbus.MakeVariant(byte(1)),
	}
	if !n.Renotify && replaces != 0 {
		hints["suppress-sound"] = dbus.MakeVariant(true)
	}

	call := d.obj.CallWithContext(ctx, dbusIface+".Notify", 0,
		d.appName,
		replaces,
		iconName(n.Icon),
		n.Title,
		escapeBody(n.Body),
		[]string{defaultAction, "Open"},
		hints,
		int32(-1),
	)
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	d.mu.Lock()
	if replaces != 0 && replaces != id {
		delete(d.byID, replaces)
	}
	d.byTag[n.Tag] = id
	d.byID[id] = n
	d.mu.Unlock()
	return nil
}

// Dismiss closes the notification shown for tag.
func (d *DBus) Dismiss(tag string) error {
	d.mu.Lock()
	id, ok := d.byTag[tag]
	if ok {
		delete(d.byTag, tag)
		delete(d.byID, id)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}
	call := d.obj.CallWithContext(context.Background(), dbusIface+".CloseNotification", 0, id)
	return call.Err
}

// Clicks returns default-action invocations.
func (d *DBus) Clicks() <-chan Click {
	return d.clicks
}

// Shutdown stops signal processing and closes the bus connection.
func (d *DBus) Shutdown() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		if d.conn != nil {
			d.conn.RemoveSignal(d.signals)
			err = d.conn.Close()
		}
	})
	return err
}

func (d *DBus) loop() {
	for {
		select {
		case sig, ok := <-d.signals:
			if !ok {
				return
			}
			d.handleSignal(sig)
		case <-d.done:
			return
		}
	}
}

func (d *DBus) handleSignal(sig *dbus.Signal) {
	if sig == nil || len(sig.Body) < 2 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}

	switch sig.Name {
	case dbusIface + ".ActionInvoked":
		action, _ := sig.Body[1].(string)
		if action != defaultAction {
			return
		}
		d.mu.Lock()
		n, known := d.byID[id]
		d.mu.Unlock()
		if !known {
			return
		}
		select {
		case d.clicks <- Click{Tag: n.Tag, URL: n.URL}:
		default:
			d.logger.Warn("click dropped, consumer too slow", zap.String("tag", n.Tag))
		}
	case dbusIface + ".NotificationClosed":
		d.mu.Lock()
		if n, known := d.byID[id]; known {
			delete(d.byID, id)
			if d.byTag[n.Tag] == id {
				delete(d.byTag, n.Tag)
			}
		}
		d.mu.Unlock()
	}
}

func iconName(icon string) string {
	if icon == "" || strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") {
		return fallbackIcon
	}
	return icon
}

var bodyEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeBody keeps servers that support body markup from interpreting chat text.
func escapeBody(s string) string {
	return bodyEscaper.Replace(s)
}
