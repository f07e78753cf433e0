package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matheus3301/chatnotify/internal/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RESTOptions configures the REST client.
type RESTOptions struct {
	BaseURL           string
	APIKey            string
	MessagesTable     string
	ChatsTable        string
	RequestsPerSecond int
	Timeout           time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// REST queries messages and chats. Requests share one rate limiter.
type REST struct {
	base    string
	opts    RESTOptions
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewREST(opts RESTOptions, logger *zap.Logger) (*REST, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", opts.BaseURL)
	}
	rps := max(opts.RequestsPerSecond, 1)
	return &REST{
		base:    trimSlash(opts.BaseURL) + "/rest/v1/",
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger,
	}, nil
}

// MessagesBetween returns messages created in (since, until] and not
// authored by the session user, oldest first.
func (r *REST) MessagesBetween(ctx context.Context, s model.Session, since, until time.Time) ([]model.IncomingMessage, error) {
	q := url.Values{}
	q.Set("select", messageColumns)
	// Repeated filters on one column are ANDed by PostgREST.
	q.Add("created_at", "gt."+postgrestTime(since))
	q.Add("created_at", "lte."+postgrestTime(until))
	q.Set("user_id", "neq."+s.UserID)
	q.Set("order", "created_at.asc")

	var rows []wireMessage
	if err := r.get(ctx, s, r.opts.MessagesTable, q, &rows); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	out := make([]model.IncomingMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// ChatFor returns the chat if the session user is its owner or partner, or
// nil when there is no such chat.
func (r *REST) ChatFor(ctx context.Context, s model.Session, chatID string) (*model.ChatParticipants, error) {
	q := url.Values{}
	q.Set("select", chatColumns)
	q.Set("id", "eq."+chatID)
	q.Set("or", fmt.Sprintf("(owner_id.eq.%s,partner_id.eq.%s)", s.UserID, s.UserID))
	q.Set("limit", "1")

	var rows []wireChat
	if err := r.get(ctx, s, r.opts.ChatsTable, q, &rows); err != nil {
		return nil, fmt.Errorf("fetch chat: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].model(), nil
}

func (r *REST) get(ctx context.Context, s model.Session, table string, q url.Values, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+url.PathEscape(table)+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if r.opts.APIKey != "" {
		req.Header.Set("apikey", r.opts.APIKey)
	}
	if bearer := bearerToken(s, r.opts.APIKey); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

// bearerToken prefers the user's access token and falls back to the API key.
func bearerToken(s model.Session, apiKey string) string {
	if s.Token != "" {
		return s.Token
	}
	return apiKey
}
