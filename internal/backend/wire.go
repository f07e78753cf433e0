// Package backend talks to the chat data source: a PostgREST-style REST API
// for queries and a Phoenix-channel change feed for realtime inserts.
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/chatnotify/internal/model"
)

// flexString accepts JSON strings and numbers; ids are bigint columns on
// some deployments and uuid/text on others.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		*f = flexString(n.String())
	}
	return nil
}

// flexTime accepts timestamps with or without a zone offset; timestamp
// columns without a zone are taken as UTC.
type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*f = flexTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

type wireMessage struct {
	ID        flexString `json:"id"`
	ChatID    flexString `json:"chat_id"`
	UserID    flexString `json:"user_id"`
	Content   string     `json:"content"`
	CreatedAt flexTime   `json:"created_at"`
}

func (w wireMessage) model() model.IncomingMessage {
	return model.IncomingMessage{
		ID:           string(w.ID),
		ChatID:       string(w.ChatID),
		SenderUserID: string(w.UserID),
		Content:      w.Content,
		CreatedAt:    time.Time(w.CreatedAt),
	}
}

type wireChat struct {
	ID              flexString `json:"id"`
	OwnerID         flexString `json:"owner_id"`
	OwnerUsername   string     `json:"owner_username"`
	PartnerID       flexString `json:"partner_id"`
	PartnerUsername string     `json:"partner_username"`
}

func (w wireChat) model() *model.ChatParticipants {
	return &model.ChatParticipants{
		ChatID:             string(w.ID),
		OwnerID:            string(w.OwnerID),
		OwnerDisplayName:   w.OwnerUsername,
		PartnerID:          string(w.PartnerID),
		PartnerDisplayName: w.PartnerUsername,
	}
}

const (
	messageColumns = "id,content,chat_id,user_id,created_at"
	chatColumns    = "id,owner_id,partner_id,owner_username,partner_username"
)

// postgrestTime formats a filter value; PostgREST compares it against timestamptz.
func postgrestTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}
