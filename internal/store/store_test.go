package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
	if result.Dirty {
		t.Error("schema reported dirty")
	}
}

func TestRecordDeduplicatesByMessageID(t *testing.T) {
	db := testDB(t)

	rec := &Record{MessageID: "m1", ChatID: "c1", Tag: "chat-c1", Title: "Bob", Body: "hi", UserID: "me", Strategy: "poll"}
	inserted, err := db.Record(rec)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("first Record() should insert")
	}

	inserted, err = db.Record(rec)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("second Record() with same message id should be ignored")
	}

	seen, err := db.Seen("m1")
	if err != nil || !seen {
		t.Errorf("Seen(m1) = %v, %v; want true", seen, err)
	}
	seen, err = db.Seen("m2")
	if err != nil || seen {
		t.Errorf("Seen(m2) = %v, %v; want false", seen, err)
	}
	if seen, _ := db.Seen(""); seen {
		t.Error("Seen(\"\") should be false")
	}
}

func TestPushRecordsAreNotDeduplicated(t *testing.T) {
	db := testDB(t)

	for range 2 {
		inserted, err := db.Record(&Record{Tag: "chat-message", Title: "Chat Bubble", Body: "x", Strategy: "push"})
		if err != nil {
			t.Fatal(err)
		}
		if !inserted {
			t.Error("push record without message id should always insert")
		}
	}
	if n, _ := db.Count(); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour)

	for i := range 5 {
		if _, err := db.Record(&Record{
			MessageID: fmt.Sprintf("m%d", i),
			Tag:       "chat-c",
			Title:     fmt.Sprintf("t%d", i),
			Strategy:  "poll",
			ShownAt:   base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := db.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d records, want 3", len(recent))
	}
	if recent[0].MessageID != "m4" || recent[2].MessageID != "m2" {
		t.Errorf("order = %s..%s, want m4..m2", recent[0].MessageID, recent[2].MessageID)
	}
	if !recent[0].ShownAt.Equal(base.Add(4 * time.Minute).Truncate(time.Millisecond)) {
		t.Errorf("ShownAt = %v", recent[0].ShownAt)
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	if _, err := db.Record(&Record{MessageID: "old", Tag: "t", Strategy: "poll", ShownAt: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Record(&Record{MessageID: "new", Tag: "t", Strategy: "poll", ShownAt: now}); err != nil {
		t.Fatal(err)
	}

	removed, err := db.Prune(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("Prune() removed %d, want 1", removed)
	}
	if seen, _ := db.Seen("old"); seen {
		t.Error("old record survived prune")
	}
	if seen, _ := db.Seen("new"); !seen {
		t.Error("new record was pruned")
	}
}
