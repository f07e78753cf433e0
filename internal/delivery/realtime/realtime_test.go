package realtime

import (
	"context"
	"testing"

	"github.com/matheus3301/chatnotify/internal/delivery"
	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
)

type fakeSub struct{ closed *int }

func (s fakeSub) Close() { *s.closed++ }

type fakeFeed struct {
	sessions []model.Session
	handlers []func(context.Context, model.IncomingMessage)
	closed   int
}

func (f *fakeFeed) Subscribe(_ context.Context, s model.Session, h func(context.Context, model.IncomingMessage)) Subscription {
	f.sessions = append(f.sessions, s)
	f.handlers = append(f.handlers, h)
	return fakeSub{closed: &f.closed}
}

type chats map[string]*model.ChatParticipants

func (c chats) ChatFor(_ context.Context, s model.Session, chatID string) (*model.ChatParticipants, error) {
	chat := c[chatID]
	if chat == nil || !chat.Has(s.UserID) {
		return nil, nil
	}
	return chat, nil
}

type sinkCall struct {
	session model.Session
	r       model.Resolved
	opts    delivery.DeliverOptions
}

type recordingSink struct{ calls []sinkCall }

func (r *recordingSink) Message(_ context.Context, s model.Session, res model.Resolved, opts delivery.DeliverOptions) {
	r.calls = append(r.calls, sinkCall{s, res, opts})
}

func (r *recordingSink) Push(context.Context, model.Session, []byte) {}

func TestRealtimeResolvesAndDelivers(t *testing.T) {
	feed := &fakeFeed{}
	sink := &recordingSink{}
	lookup := chats{
		"c1": {ChatID: "c1", OwnerID: "alice", PartnerID: "bob", PartnerDisplayName: "Bob"},
		"c2": {ChatID: "c2", OwnerID: "carol", PartnerID: "dave"},
	}
	s := New(feed, delivery.NewResolver(lookup), sink, zap.NewNop())
	sess := model.Session{UserID: "alice", Epoch: 4}

	h, err := s.Start(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	emit := feed.handlers[0]
	ctx := context.Background()
	emit(ctx, model.IncomingMessage{ID: "1", ChatID: "c1", SenderUserID: "bob", Content: "hi"})
	emit(ctx, model.IncomingMessage{ID: "2", ChatID: "c1", SenderUserID: "alice", Content: "mine"})
	emit(ctx, model.IncomingMessage{ID: "3", ChatID: "c2", SenderUserID: "carol", Content: "not ours"})

	if len(sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(sink.calls))
	}
	call := sink.calls[0]
	if call.r.SenderName != "Bob" || call.session.Epoch != 4 || call.opts.Strategy != delivery.StrategyRealtime {
		t.Errorf("call = %+v", call)
	}
	if call.opts.SuppressWhenFocused {
		t.Error("realtime delivery should not request focus suppression")
	}

	h.Stop()
	if feed.closed != 1 {
		t.Errorf("subscription closed %d times, want 1", feed.closed)
	}
}

func TestRealtimeSubscribesPerSession(t *testing.T) {
	feed := &fakeFeed{}
	s := New(feed, delivery.NewResolver(chats{}), &recordingSink{}, zap.NewNop())
	ctx := context.Background()

	h1, _ := s.Start(ctx, model.Session{UserID: "alice", Epoch: 1})
	h1.Stop()
	h2, _ := s.Start(ctx, model.Session{UserID: "bob", Epoch: 2})
	defer h2.Stop()

	if len(feed.sessions) != 2 || feed.sessions[1].UserID != "bob" {
		t.Errorf("subscriptions = %+v", feed.sessions)
	}
	if feed.closed != 1 {
		t.Errorf("closed = %d, want the first subscription closed", feed.closed)
	}
}
