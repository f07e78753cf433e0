package model

import "time"

// Session is the identity the worker is currently delivering for.
// A new Epoch is assigned every time delivery starts, so work begun before
// an identity change, disable or sign-out can be recognised as stale.
type Session struct {
	UserID string
	Token  string
	Epoch  uint64
}

// IncomingMessage is a chat message addressed to the current user.
type IncomingMessage struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chat_id"`
	SenderUserID string    `json:"user_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatParticipants describes the two members of a chat.
type ChatParticipants struct {
	ChatID             string `json:"id"`
	OwnerID            string `json:"owner_id"`
	OwnerDisplayName   string `json:"owner_username"`
	PartnerID          string `json:"partner_id"`
	PartnerDisplayName string `json:"partner_username"`
}

// Has reports whether userID is the owner or the partner of the chat.
func (c *ChatParticipants) Has(userID string) bool {
	return userID != "" && (c.OwnerID == userID || c.PartnerID == userID)
}

// Other returns the participant that is not userID.
func (c *ChatParticipants) Other(userID string) (id, name string) {
	if c.OwnerID == userID {
		return c.PartnerID, c.PartnerDisplayName
	}
	return c.OwnerID, c.OwnerDisplayName
}

// Resolved is an incoming message whose sender display name has been looked up.
type Resolved struct {
	Message    IncomingMessage
	SenderName string
}

// Notification is the request handed to the OS notification surface.
type Notification struct {
	Title     string
	Body      string
	Icon      string
	Badge     string
	Tag       string
	Renotify  bool
	URL       string
	ChatID    string
	MessageID string
}
