// Package history is the local store for conversation sessions. One generic
// Store backs both the text-chat and voice-chat histories; each instance
// persists its whole collection as a JSON snapshot after every mutation.
package history

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one conversation thread. Messages are append-only and display
// in insertion order.
type Session[M any] struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []M       `json:"messages"`
}

// Meta is a lightweight representation for listing in the UI.
type Meta struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

type snapshot[M any] struct {
	Sessions []*Session[M] `json:"sessions"`
	ActiveID string        `json:"active_session_id"`
}

// titleLimit is how many characters of the first message become the title.
const titleLimit = 50

// Store holds an ordered session list (newest first) plus the active-session
// pointer. Safe for concurrent use.
type Store[M any] struct {
	path    string
	content func(M) string
	logger  *slog.Logger

	mu       sync.Mutex
	sessions []*Session[M]
	activeID string
}

// NewStore loads the snapshot at path, or starts empty when the file is
// missing or unreadable. content extracts the display text of a message for
// title derivation.
func NewStore[M any](path string, content func(M) string, logger *slog.Logger) *Store[M] {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store[M]{path: path, content: content, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read history snapshot", "path", path, "error", err)
		}
		return s
	}
	var snap snapshot[M]
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("failed to parse history snapshot, starting empty", "path", path, "error", err)
		return s
	}
	s.sessions = snap.Sessions
	s.activeID = snap.ActiveID
	return s
}

// CreateSession inserts a new empty session at the head of the list and makes
// it active. Returns the new session id.
func (s *Store[M]) CreateSession(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &Session[M]{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions = append([]*Session[M]{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persistLocked()
	return sess.ID
}

// SetActive switches the active pointer. The caller is responsible for
// passing a valid id; an unknown id simply leaves no session displayed.
func (s *Store[M]) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
	s.persistLocked()
}

// ActiveID returns the active session id, or "" when none is active.
func (s *Store[M]) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// DeleteSession removes a session. Deleting the active session promotes the
// new head of the list, or clears the pointer when the list is empty.
func (s *Store[M]) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	if s.activeID == id {
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		} else {
			s.activeID = ""
		}
	}
	s.persistLocked()
}

// RenameSession sets an explicit title. Returns false for an unknown id.
func (s *Store[M]) RenameSession(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		return false
	}
	sess.Title = title
	sess.UpdatedAt = time.Now()
	s.persistLocked()
	return true
}

// AppendMessage appends to the named session and bumps its UpdatedAt. The
// first message of a session derives the title from its leading characters.
// Returns false when the session no longer exists (e.g. a reply landing
// after deletion), which callers treat as a no-op.
func (s *Store[M]) AppendMessage(id string, msg M) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		return false
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now()
	if len(sess.Messages) == 1 {
		sess.Title = truncate(s.content(msg), titleLimit)
	}
	s.persistLocked()
	return true
}

// AmendMessage applies fn to the message at index i of the named session.
// Used to attach the audio reference once synthesis completes.
func (s *Store[M]) AmendMessage(id string, i int, fn func(*M)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil || i < 0 || i >= len(sess.Messages) {
		return false
	}
	fn(&sess.Messages[i])
	s.persistLocked()
	return true
}

// ClearSessions drops every session and the active pointer.
func (s *Store[M]) ClearSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	s.activeID = ""
	s.persistLocked()
}

// List returns session metadata in display order (newest first).
func (s *Store[M]) List() []Meta {
	s.mu.Lock()
	defer s.mu.Unlock()

	metas := make([]Meta, 0, len(s.sessions))
	for _, sess := range s.sessions {
		metas = append(metas, Meta{
			ID:           sess.ID,
			Title:        sess.Title,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
			MessageCount: len(sess.Messages),
		})
	}
	return metas
}

// Messages returns a copy of a session's message list in display order.
func (s *Store[M]) Messages(id string) []M {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		return nil
	}
	out := make([]M, len(sess.Messages))
	copy(out, sess.Messages)
	return out
}

// Title returns a session's current title.
func (s *Store[M]) Title(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.findLocked(id); sess != nil {
		return sess.Title
	}
	return ""
}

func (s *Store[M]) findLocked(id string) *Session[M] {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// persistLocked writes the whole snapshot. Best effort: a failed write is
// logged and the in-memory state stays authoritative.
func (s *Store[M]) persistLocked() {
	snap := snapshot[M]{Sessions: s.sessions, ActiveID: s.activeID}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.logger.Warn("failed to marshal history snapshot", "path", s.path, "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("failed to create history directory", "path", s.path, "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Warn("failed to write history snapshot", "path", s.path, "error", err)
	}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
