package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

const (
	phxJoin      = "phx_join"
	phxLeave     = "phx_leave"
	phxReply     = "phx_reply"
	phxError     = "phx_error"
	phxClose     = "phx_close"
	phxHeartbeat = "heartbeat"
	phxChanges   = "postgres_changes"

	minBackoff   = time.Second
	maxBackoff   = 30 * time.Second
	leaveTimeout = 2 * time.Second
)

// RealtimeOptions configures the change-feed client.
type RealtimeOptions struct {
	URL       string
	APIKey    string
	Schema    string
	Table     string
	Heartbeat time.Duration
}

// Realtime subscribes to message inserts over a Phoenix channel.
type Realtime struct {
	opts   RealtimeOptions
	logger *zap.Logger
}

func NewRealtime(opts RealtimeOptions, logger *zap.Logger) (*Realtime, error) {
	u, err := url.Parse(opts.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid realtime url %q", opts.URL)
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	return &Realtime{opts: opts, logger: logger}, nil
}

type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changesPayload struct {
	Data struct {
		Type   string          `json:"type"`
		Schema string          `json:"schema"`
		Table  string          `json:"table"`
		Record json.RawMessage `json:"record"`
	} `json:"data"`
}

// MessageHandler receives inserted messages one at a time.
type MessageHandler func(ctx context.Context, msg model.IncomingMessage)

// Subscription is a live change-feed subscription. It reconnects with
// backoff until closed.
type Subscription struct {
	rt      *Realtime
	session model.Session
	handler MessageHandler
	topic   string
	ref     atomic.Uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// Subscribe starts a subscription for s in the background. Connection
// failures are logged and retried; they are not returned.
func (r *Realtime) Subscribe(ctx context.Context, s model.Session, handler MessageHandler) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		rt:      r,
		session: s,
		handler: handler,
		topic:   fmt.Sprintf("realtime:%s:%s", r.opts.Schema, r.opts.Table),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.run(ctx)
	return sub
}

// Close requests the channel leave and returns without waiting for it.
func (s *Subscription) Close() {
	s.cancel()
}

// Done is closed once the subscription has fully torn down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	logger := s.rt.logger.With(zap.String("topic", s.topic), zap.String("user", s.session.UserID))

	backoff := minBackoff
	for {
		joined, err := s.connect(ctx)
		if ctx.Err() != nil {
			logger.Debug("subscription closed")
			return
		}
		if joined {
			backoff = minBackoff
		}
		logger.Warn("realtime connection lost, reconnecting",
			zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// connect runs one connection until it fails or ctx is cancelled. joined
// reports whether the channel join was acknowledged.
func (s *Subscription) connect(ctx context.Context) (joined bool, err error) {
	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, s.rt.endpoint(), nil)
	cancelDial()
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(1 << 20)

	// The connection gets its own context: cancelling a read closes the
	// socket, and the leave message must still be written on Close.
	connCtx, cancelConn := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConn()
	go func() {
		select {
		case <-ctx.Done():
			s.leave(conn)
			cancelConn()
		case <-connCtx.Done():
		}
	}()

	joinRef := s.nextRef()
	if err := s.send(connCtx, conn, s.topic, phxJoin, s.joinPayload(), joinRef); err != nil {
		return false, fmt.Errorf("join: %w", err)
	}
	go s.heartbeat(connCtx, conn)

	for {
		var msg phxMessage
		if err := wsjson.Read(connCtx, conn, &msg); err != nil {
			return joined, fmt.Errorf("read: %w", err)
		}

		switch msg.Event {
		case phxReply:
			if msg.Ref == nil || *msg.Ref != joinRef {
				continue
			}
			var reply replyPayload
			if err := json.Unmarshal(msg.Payload, &reply); err != nil {
				return joined, fmt.Errorf("decode join reply: %w", err)
			}
			if reply.Status != "ok" {
				return joined, fmt.Errorf("join rejected: %s", string(reply.Response))
			}
			joined = true
			s.rt.logger.Info("realtime subscription joined", zap.String("topic", s.topic))
		case phxChanges:
			s.dispatch(ctx, msg.Payload)
		case phxError, phxClose:
			if msg.Topic == s.topic {
				return joined, errors.New("channel " + msg.Event)
			}
		}
	}
}

func (s *Subscription) dispatch(ctx context.Context, payload json.RawMessage) {
	var p changesPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.rt.logger.Warn("malformed change event", zap.Error(err))
		return
	}
	if p.Data.Type != "INSERT" || p.Data.Table != s.rt.opts.Table {
		return
	}
	var row wireMessage
	if err := json.Unmarshal(p.Data.Record, &row); err != nil {
		s.rt.logger.Warn("malformed message record", zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	s.handler(ctx, row.model())
}

func (s *Subscription) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.rt.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.send(ctx, conn, "phoenix", phxHeartbeat, struct{}{}, s.nextRef()); err != nil {
				s.rt.logger.Debug("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Subscription) leave(conn *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := s.send(ctx, conn, s.topic, phxLeave, struct{}{}, s.nextRef()); err != nil {
		s.rt.logger.Debug("leave failed", zap.Error(err))
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Subscription) send(ctx context.Context, conn *websocket.Conn, topic, event string, payload any, ref string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := phxMessage{Topic: topic, Event: event, Payload: raw, Ref: &ref}
	if event == phxJoin {
		msg.JoinRef = &ref
	}
	return wsjson.Write(ctx, conn, msg)
}

func (s *Subscription) joinPayload() joinPayload {
	var p joinPayload
	p.Config.PostgresChanges = []changeFilter{{
		Event:  "INSERT",
		Schema: s.rt.opts.Schema,
		Table:  s.rt.opts.Table,
	}}
	p.AccessToken = bearerToken(s.session, s.rt.opts.APIKey)
	return p
}

func (s *Subscription) nextRef() string {
	return strconv.FormatUint(s.ref.Add(1), 10)
}

func (r *Realtime) endpoint() string {
	u, _ := url.Parse(r.opts.URL)
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	if r.opts.APIKey != "" {
		q.Set("apikey", r.opts.APIKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String()
}
