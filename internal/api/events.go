package api

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatnotify/internal/bus"
	"github.com/matheus3301/chatnotify/internal/dispatch"
	"github.com/matheus3301/chatnotify/internal/focus"
	"github.com/matheus3301/chatnotify/internal/model"
	"github.com/matheus3301/chatnotify/internal/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const eventBuffer = 64

// WatchEvents streams bus events matching the requested kind prefix. An empty
// prefix streams everything. Events are dropped, not queued, for slow readers.
func (s *WorkerService) WatchEvents(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	events, unsubscribe := s.bus.Subscribe(in.GetValue(), eventBuffer)
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := eventStruct(evt)
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "encode %s event: %v", evt.Kind, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// eventStruct flattens an event and its payload into one Struct.
func eventStruct(evt bus.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		"kind": evt.Kind,
		"at":   evt.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		fields["from"] = string(p.From)
		fields["to"] = string(p.To)
	case model.Notification:
		fields["tag"] = p.Tag
		fields["title"] = p.Title
		fields["body"] = p.Body
		fields["chat_id"] = p.ChatID
		fields["message_id"] = p.MessageID
	case dispatch.Suppressed:
		fields["reason"] = p.Reason
		fields["chat_id"] = p.ChatID
		fields["message_id"] = p.MessageID
	case focus.Window:
		fields["window_id"] = p.ID
		fields["url"] = p.URL
		fields["focused"] = p.Focused
		fields["controlled"] = p.Controlled
	case focus.FocusRequest:
		fields["window_id"] = p.WindowID
		fields["url"] = p.URL
	case string:
		fields["user"] = p
	case nil:
	default:
		fields["payload"] = fmt.Sprint(p)
	}
	return structpb.NewStruct(fields)
}
