// Package identity holds the session-identity triple (token, customer id,
// verified flag) and the authenticated customer profile. A fresh token is
// minted on first run and survives restarts; logout resets everything.
package identity

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/teller-cli/teller/internal/bankapi"
)

// State is the persisted identity snapshot.
type State struct {
	SessionID  string            `json:"session_id"`
	CustomerID string            `json:"customer_id,omitempty"`
	Verified   bool              `json:"verified"`
	Customer   *bankapi.Customer `json:"customer,omitempty"`
}

// Manager owns the identity state and its JSON file. Safe for concurrent use.
type Manager struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// NewManager loads the state at path, minting a fresh session token when the
// file is missing or unreadable.
func NewManager(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err == nil {
		var st State
		if jsonErr := json.Unmarshal(data, &st); jsonErr == nil && st.SessionID != "" {
			m.state = st
			return m
		}
		logger.Warn("failed to parse identity state, starting fresh", "path", path)
	} else if !os.IsNotExist(err) {
		logger.Warn("failed to read identity state", "path", path, "error", err)
	}

	m.state = State{SessionID: uuid.NewString()}
	m.persistLocked()
	return m
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Verified reports whether the identity has been verified.
func (m *Manager) Verified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Verified
}

// SetVerified records a successful verification and the returned profile.
func (m *Manager) SetVerified(customerID string, customer *bankapi.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.CustomerID = customerID
	m.state.Verified = true
	m.state.Customer = customer
	m.persistLocked()
}

// Reset mints a fresh session token and clears customer, verified flag, and
// profile. Called on logout.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{SessionID: uuid.NewString()}
	m.persistLocked()
}

func (m *Manager) persistLocked() {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		m.logger.Warn("failed to marshal identity state", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		m.logger.Warn("failed to create identity directory", "path", m.path, "error", err)
		return
	}
	// 0600: the file names a customer id.
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		m.logger.Warn("failed to write identity state", "path", m.path, "error", err)
	}
}
