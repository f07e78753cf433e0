package delivery

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatnotify/internal/metrics"
	"github.com/matheus3301/chatnotify/internal/model"
)

// ChatLookup fetches a chat's participants, restricted to chats where the
// session user is owner or partner. It returns nil, nil when no such chat exists.
type ChatLookup interface {
	ChatFor(ctx context.Context, s model.Session, chatID string) (*model.ChatParticipants, error)
}

// Resolver turns an IncomingMessage into a Resolved one by looking up the
// chat participants. Results are not cached between messages.
type Resolver struct {
	lookup ChatLookup
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup ChatLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns ok=false for messages that must not notify: self-authored
// messages and messages in chats the user is not part of. A lookup failure
// is returned as an error and counted.
func (r *Resolver) Resolve(ctx context.Context, s model.Session, msg model.IncomingMessage) (model.Resolved, bool, error) {
	if msg.SenderUserID == s.UserID {
		return model.Resolved{}, false, nil
	}

	chat, err := r.lookup.ChatFor(ctx, s, msg.ChatID)
	if err != nil {
		metrics.IncLookupFailure()
		return model.Resolved{}, false, fmt.Errorf("lookup chat %s: %w", msg.ChatID, err)
	}
	if chat == nil || !chat.Has(s.UserID) {
		return model.Resolved{}, false, nil
	}

	otherID, name := chat.Other(s.UserID)
	if name == "" {
		name = otherID
	}
	return model.Resolved{Message: msg, SenderName: name}, true, nil
}
