package store

import (
	"database/sql"
	"time"
)

// Record is one notification handed to the OS surface.
type Record struct {
	ID        int64
	MessageID string // empty for push payloads
	ChatID    string
	Tag       string
	Title     string
	Body      string
	UserID    string
	Strategy  string
	ShownAt   time.Time
}

// Record stores a shown notification. A record whose MessageID is already
// journaled is ignored; the return value reports whether a row was inserted.
func (db *DB) Record(r *Record) (bool, error) {
	shownAt := r.ShownAt
	if shownAt.IsZero() {
		shownAt = time.Now()
	}
	res, err := db.Exec(`
		INSERT INTO notifications (message_id, chat_id, tag, title, body, user_id, strategy, shown_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		nullable(r.MessageID), r.ChatID, r.Tag, r.Title, r.Body, r.UserID, r.Strategy, shownAt.UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Seen reports whether a notification for messageID was already shown.
func (db *DB) Seen(messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var one int
	err := db.QueryRow(`SELECT 1 FROM notifications WHERE message_id = ?`, messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Recent returns the newest notifications first.
func (db *DB) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, COALESCE(message_id, ''), chat_id, tag, title, body, user_id, strategy, shown_at
		FROM notifications
		ORDER BY shown_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		var shownAt int64
		if err := rows.Scan(&r.ID, &r.MessageID, &r.ChatID, &r.Tag, &r.Title, &r.Body, &r.UserID, &r.Strategy, &shownAt); err != nil {
			return nil, err
		}
		r.ShownAt = time.UnixMilli(shownAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of journaled notifications.
func (db *DB) Count() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&n)
	return n, err
}

// Prune deletes notifications shown before cutoff and returns how many were removed.
func (db *DB) Prune(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM notifications WHERE shown_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
