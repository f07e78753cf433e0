package policy

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/matheus3301/chatnotify/internal/model"
)

// Suppression reasons.
const (
	ReasonOwnMessage = "own_message"
	ReasonAppFocused = "app_focused"
)

// Options configures rendering.
type Options struct {
	AppURL       string
	Icon         string
	TitleEmblem  string
	BodyMaxChars int
	Ellipsis     string
	DefaultTitle string
	DefaultBody  string
	PushTag      string
}

// Policy decides whether a message notifies and how it is rendered.
type Policy struct {
	opts Options
}

// New creates a policy. BodyMaxChars defaults to 100.
func New(opts Options) *Policy {
	if opts.BodyMaxChars <= 0 {
		opts.BodyMaxChars = 100
	}
	return &Policy{opts: opts}
}

// AppURL returns the canonical application URL.
func (p *Policy) AppURL() string {
	return p.opts.AppURL
}

// Suppress returns the reason msg must not notify, or "" if it may.
func (p *Policy) Suppress(s model.Session, msg model.IncomingMessage, appFocused bool) string {
	if msg.SenderUserID == s.UserID {
		return ReasonOwnMessage
	}
	if appFocused {
		return ReasonAppFocused
	}
	return ""
}

// Render builds the notification for a resolved chat message.
func (p *Policy) Render(r model.Resolved) model.Notification {
	title := r.SenderName
	if p.opts.TitleEmblem != "" {
		title = p.opts.TitleEmblem + " " + title
	}
	return p.notification(title, Truncate(r.Message.Content, p.opts.BodyMaxChars, p.opts.Ellipsis), Tag(r.Message.ChatID), r.Message.ChatID, r.Message.ID)
}

// RenderPush builds the notification for a pre-formatted push payload.
func (p *Policy) RenderPush(payload []byte) model.Notification {
	title, body := p.ParsePush(payload)
	return p.notification(title, body, p.opts.PushTag, "", "")
}

func (p *Policy) notification(title, body, tag, chatID, messageID string) model.Notification {
	return model.Notification{
		Title:     title,
		Body:      body,
		Icon:      p.opts.Icon,
		Badge:     p.opts.Icon,
		Tag:       tag,
		Renotify:  true,
		URL:       p.opts.AppURL,
		ChatID:    chatID,
		MessageID: messageID,
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ParsePush extracts title and body from a push payload: a JSON object
// {title?, body?}, or plain text with the title on the first line and the
// body on the second. Empty or missing fields fall back to the defaults.
func (p *Policy) ParsePush(payload []byte) (title, body string) {
	title, body = p.opts.DefaultTitle, p.opts.DefaultBody

	var pp pushPayload
	if err := json.Unmarshal(payload, &pp); err == nil {
		if pp.Title != "" {
			title = pp.Title
		}
		if pp.Body != "" {
			body = pp.Body
		}
		return title, body
	}

	lines := strings.Split(string(payload), "\n")
	if first := strings.TrimRight(lines[0], "\r"); first != "" {
		title = first
	}
	if len(lines) > 1 {
		if second := strings.TrimRight(lines[1], "\r"); second != "" {
			body = second
		}
	}
	return title, body
}

// Tag is the grouping tag for a chat; notifications sharing it replace each other.
func Tag(chatID string) string {
	return "chat-" + chatID
}

// Truncate shortens s to max characters and appends ellipsis when it was longer.
func Truncate(s string, max int, ellipsis string) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + ellipsis
}
