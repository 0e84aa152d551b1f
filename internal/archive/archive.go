// Package archive keeps a best-effort sqlite mirror of every message, across
// sessions and channels, so history search works even after sessions are
// deleted. Nothing here may fail a turn: errors are logged and swallowed.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one archived message row.
type Entry struct {
	Channel   string
	SessionID string
	Role      string
	Content   string
	Flow      string
	Timestamp time.Time
}

// Archive wraps the transcript database.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	flow TEXT,
	ts DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id);
`

// Open creates or opens the transcript database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// WAL keeps writes from blocking reads during search.
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping transcript db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init transcript schema: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record mirrors one message. Best effort; failures are logged only.
func (a *Archive) Record(ctx context.Context, channel, sessionID string, role, content, flow string, ts time.Time) {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO transcripts (channel, session_id, role, content, flow, ts) VALUES (?, ?, ?, ?, ?, ?)",
		channel, sessionID, role, content, flow, ts.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		a.logger.Warn("failed to archive message", "channel", channel, "error", err)
	}
}

// Search returns up to limit entries whose content contains query, newest
// first.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := a.db.QueryContext(ctx,
		`SELECT channel, session_id, role, content, COALESCE(flow, ''), ts
		 FROM transcripts WHERE content LIKE ? ESCAPE '\' ORDER BY id DESC LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.Channel, &e.SessionID, &e.Role, &e.Content, &e.Flow, &ts); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
			e.Timestamp = parsed
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
