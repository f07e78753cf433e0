package push

import (
	"context"
	"testing"

	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

type pushSink struct {
	sessions []model.Session
	payloads []string
}

func (p *pushSink) Message(context.Context, model.Session, model.Resolved, delivery.DeliverOptions) {}

func (p *pushSink) Push(_ context.Context, s model.Session, payload []byte) {
	p.sessions = append(p.sessions, s)
	p.payloads = append(p.payloads, string(payload))
}

func TestReceiveRequiresActiveSession(t *testing.T) {
	sink := &pushSink{}
	s := New(sink, zap.NewNop())
	ctx := context.Background()

	if s.Receive(ctx, []byte("early")) {
		t.Error("Receive() accepted a payload with no session")
	}

	h, err := s.Start(ctx, model.Session{UserID: "alice", Epoch: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Receive(ctx, []byte(`{"title":"t"}`)) {
		t.Error("Receive() dropped a payload while active")
	}

	h.Stop()
	if s.Receive(ctx, []byte("late")) {
		t.Error("Receive() accepted a payload after Stop")
	}

	if len(sink.payloads) != 1 || sink.sessions[0].Epoch != 1 {
		t.Errorf("sink got %v / %+v", sink.payloads, sink.sessions)
	}
}

func TestStaleHandleDoesNotClearNewSession(t *testing.T) {
	sink := &pushSink{}
	s := New(sink, zap.NewNop())
	ctx := context.Background()

	old, _ := s.Start(ctx, model.Session{UserID: "alice", Epoch: 1})
	if _, err := s.Start(ctx, model.Session{UserID: "bob", Epoch: 2}); err != nil {
		t.Fatal(err)
	}
	old.Stop()

	if !s.Receive(ctx, []byte("hi")) {
		t.Fatal("stopping an old handle cleared the new session")
	}
	if sink.sessions[0].UserID != "bob" {
		t.Errorf("payload attributed to %q, want bob", sink.sessions[0].UserID)
	}
}
