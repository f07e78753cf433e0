package api

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/chatnotify/internal/bus"
	"github.com/matheus3301/chatnotify/internal/focus"
	"github.com/matheus3301/chatnotify/internal/metrics"
	"github.com/matheus3301/chatnotify/internal/session"
	"github.com/matheus3301/chatnotify/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const defaultHistoryLimit = 20

// PushReceiver accepts push payloads. It reports false when the payload was
// dropped because no session is active.
type PushReceiver interface {
	Receive(ctx context.Context, payload []byte) bool
}

// Reuniter handles notification clicks.
type Reuniter interface {
	Reunite(ctx context.Context, tag string) error
}

// WorkerService implements WorkerServer.
type WorkerService struct {
	profile   string
	startedAt time.Time
	registry  *session.Registry
	push      PushReceiver
	reuniter  Reuniter
	windows   *focus.Windows
	bus       *bus.Bus
	db        *store.DB
	logger    *zap.Logger
}

var _ WorkerServer = (*WorkerService)(nil)

// NewWorkerService creates the service. push is nil unless the push
// strategy is configured.
func NewWorkerService(profile string, registry *session.Registry, push PushReceiver, reuniter Reuniter, windows *focus.Windows, b *bus.Bus, db *store.DB, logger *zap.Logger) *WorkerService {
	return &WorkerService{
		profile:   profile,
		startedAt: time.Now(),
		registry:  registry,
		push:      push,
		reuniter:  reuniter,
		windows:   windows,
		bus:       b,
		db:        db,
		logger:    logger,
	}
}

func (s *WorkerService) Command(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	cmd, err := session.ParseCommand(in.AsMap())
	if err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.registry.Handle(ctx, cmd); err != nil {
		if errors.Is(err, session.ErrMissingUser) || errors.Is(err, session.ErrUnknownCommand) {
			return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
		}
		return nil, grpcstatus.Errorf(codes.Unavailable, "%s: %v", cmd.Type, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *WorkerService) Push(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if s.push == nil {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "push delivery is not configured (strategy %s)", s.registry.Strategy())
	}
	// A push without data carries nothing to show.
	if len(in.GetValue()) == 0 {
		s.logger.Debug("empty push payload ignored")
		return &emptypb.Empty{}, nil
	}
	if !s.push.Receive(ctx, in.GetValue()) {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "no active session, payload dropped")
	}
	return &emptypb.Empty{}, nil
}

func (s *WorkerService) Click(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.reuniter.Reunite(ctx, in.GetValue()); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "reunite: %v", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *WorkerService) ReportWindow(_ context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := in.GetFields()
	url := fields["url"].GetStringValue()
	if url == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "url is required")
	}
	controlled := true
	if v, ok := fields["controlled"]; ok {
		controlled = v.GetBoolValue()
	}

	id := s.windows.Report(focus.Window{
		ID:         fields["id"].GetStringValue(),
		URL:        url,
		Focused:    fields["focused"].GetBoolValue(),
		Controlled: controlled,
	})
	return wrapperspb.String(id), nil
}

func (s *WorkerService) CloseWindow(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if !s.windows.Remove(in.GetValue()) {
		return nil, grpcstatus.Errorf(codes.NotFound, "window %q not found", in.GetValue())
	}
	return &emptypb.Empty{}, nil
}

// WatchWindow streams focus requests for one window until the client goes
// away. The window is forgotten when its stream ends.
func (s *WorkerService) WatchWindow(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	id := in.GetValue()
	if _, ok := s.windows.Get(id); !ok {
		return grpcstatus.Errorf(codes.NotFound, "window %q not found", id)
	}

	events, unsubscribe := s.bus.Subscribe(bus.KindWindowFocus, 16)
	defer unsubscribe()
	defer s.windows.Remove(id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			req, ok := evt.Payload.(focus.FocusRequest)
			if !ok || req.WindowID != id {
				continue
			}
			msg, err := structpb.NewStruct(map[string]any{
				"kind": "focus",
				"url":  req.URL,
			})
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "encode focus request: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *WorkerService) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	sess, signedIn := s.registry.Current()
	snap := metrics.Read()

	fields := map[string]any{
		"profile":         s.profile,
		"state":           string(s.registry.State()),
		"strategy":        s.registry.Strategy(),
		"enabled":         s.registry.Enabled(),
		"signed_in":       signedIn,
		"user":            sess.UserID,
		"uptime_ms":       time.Since(s.startedAt).Milliseconds(),
		"windows":         len(s.windows.List(true)),
		"shown":           snap.Shown,
		"suppressed":      snap.Suppressed,
		"duplicates":      snap.Duplicates,
		"poll_failures":   snap.PollFailures,
		"lookup_failures": snap.LookupFailures,
	}
	if !snap.LastPoll.IsZero() {
		fields["last_poll"] = snap.LastPoll.Unix()
	}
	if s.db != nil {
		if n, err := s.db.Count(); err == nil {
			fields["journaled"] = n
		}
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

func (s *WorkerService) History(_ context.Context, in *wrapperspb.Int32Value) (*structpb.Struct, error) {
	if s.db == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "journal not initialized")
	}
	limit := int(in.GetValue())
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := s.db.Recent(limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "query journal: %v", err)
	}
	items := make([]any, 0, len(records))
	for _, r := range records {
		items = append(items, map[string]any{
			"message_id": r.MessageID,
			"chat_id":    r.ChatID,
			"tag":        r.Tag,
			"title":      r.Title,
			"body":       r.Body,
			"user_id":    r.UserID,
			"strategy":   r.Strategy,
			"shown_at":   r.ShownAt.UTC().Format(time.RFC3339),
		})
	}

	out, err := structpb.NewStruct(map[string]any{"notifications": items})
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode history: %v", err)
	}
	return out, nil
}
