package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(context.Background(), filepath.Join(t.TempDir(), "transcripts.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndSearch(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	now := time.Now()

	a.Record(ctx, "chat", "sess-1", "user", "what is my balance", "", now)
	a.Record(ctx, "chat", "sess-1", "agent", "Your balance is $500", "balance", now.Add(time.Second))
	a.Record(ctx, "voice", "sess-2", "user", "show my cards", "", now.Add(2*time.Second))

	entries, err := a.Search(ctx, "balance", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Role != "agent" || entries[0].Flow != "balance" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Channel != "chat" || entries[1].SessionID != "sess-1" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp not round-tripped")
	}
}

func TestSearchSurvivesSessionDeletion(t *testing.T) {
	// The archive is independent of the session stores: rows stay after the
	// originating session is gone, which is the point of keeping it.
	a := openTestArchive(t)
	ctx := context.Background()

	a.Record(ctx, "chat", "deleted-session", "user", "unique needle text", "", time.Now())
	entries, err := a.Search(ctx, "needle", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d", len(entries))
	}
}

func TestSearchEscapesLikeWildcards(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	a.Record(ctx, "chat", "s", "user", "literal 100% match", "", time.Now())
	a.Record(ctx, "chat", "s", "user", "nothing here", "", time.Now())

	entries, err := a.Search(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("wildcard leaked into the pattern: %d matches", len(entries))
	}
}

func TestSearchLimit(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		a.Record(ctx, "chat", "s", "user", "repeated message", "", time.Now())
	}
	entries, err := a.Search(ctx, "repeated", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want limit of 3", len(entries))
	}
}
