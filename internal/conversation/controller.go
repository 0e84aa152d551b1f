package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teller-cli/teller/internal/bankapi"
	"github.com/teller-cli/teller/internal/history"
	"github.com/teller-cli/teller/internal/identity"
)

// ChatAPI is the slice of the transport client a text controller needs.
type ChatAPI interface {
	Send(ctx context.Context, req bankapi.ChatRequest) (*bankapi.ChatResponse, error)
	Verify(ctx context.Context, customerID, pin string) (*bankapi.VerifyResponse, error)
}

// Archiver mirrors appended messages into the transcript archive. Optional;
// implementations must be best-effort and never fail the turn.
type Archiver interface {
	Record(ctx context.Context, channel, sessionID string, role, content, flow string, ts time.Time)
}

// State is what the UI reads from a text controller between renders.
type State struct {
	Busy                 bool
	Err                  string
	AwaitingVerification bool
	VerifyErr            string
	Verified             bool
}

const fallbackVerifyErr = "Invalid Customer ID or PIN"

// Controller runs text chat turns. One turn in flight at a time; a Submit
// while busy is ignored rather than queued.
type Controller struct {
	store   *history.Store[Message]
	ident   *identity.Manager
	api     ChatAPI
	archive Archiver
	logger  *slog.Logger

	mu          sync.Mutex
	busy        bool
	errMsg      string
	awaiting    bool
	verifyErr   string
	pending     string
	pendingEcho bool // whether pending still needs its optimistic user echo
	subs        []func()
}

// NewController wires a text controller. archive may be nil.
func NewController(store *history.Store[Message], ident *identity.Manager, api ChatAPI, archive Archiver, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{store: store, ident: ident, api: api, archive: archive, logger: logger}
}

// Subscribe registers fn to run after every state change.
func (c *Controller) Subscribe(fn func()) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.Lock()
	subs := make([]func(), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// State returns a snapshot for rendering.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Busy:                 c.busy,
		Err:                  c.errMsg,
		AwaitingVerification: c.awaiting,
		VerifyErr:            c.verifyErr,
		Verified:             c.ident.Verified(),
	}
}

// DismissError clears the surfaced transport error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
	c.notify()
}

// Submit runs one chat turn with the given input. With an unverified
// identity the message is suspended and the verification prompt raised
// instead; no chat call is made until verification succeeds.
func (c *Controller) Submit(ctx context.Context, text string) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return
	}
	if !c.ident.Verified() {
		c.pending = text
		c.pendingEcho = true
		c.awaiting = true
		c.mu.Unlock()
		c.notify()
		return
	}
	c.busy = true
	c.errMsg = ""
	c.mu.Unlock()
	c.notify()

	c.send(ctx, text, true)
}

// Verify runs the identity round trip. On success the suspended message, if
// any, is resubmitted exactly once. On rejection the pending message is kept
// so the user can retry without retyping.
func (c *Controller) Verify(ctx context.Context, customerID, pin string) {
	resp, err := c.api.Verify(ctx, customerID, pin)
	if err != nil {
		c.mu.Lock()
		c.verifyErr = err.Error()
		c.mu.Unlock()
		c.notify()
		return
	}
	if !resp.Verified {
		msg := resp.Message
		if msg == "" {
			msg = fallbackVerifyErr
		}
		c.mu.Lock()
		c.verifyErr = msg
		c.mu.Unlock()
		c.notify()
		return
	}

	c.ident.SetVerified(customerID, resp.Customer)

	c.mu.Lock()
	c.awaiting = false
	c.verifyErr = ""
	pending, echo := c.pending, c.pendingEcho
	c.pending = ""
	c.busy = pending != ""
	c.mu.Unlock()
	c.notify()

	if pending != "" {
		c.send(ctx, pending, echo)
	}
}

// CancelVerification closes the prompt and drops the suspended message.
func (c *Controller) CancelVerification() {
	c.mu.Lock()
	c.awaiting = false
	c.verifyErr = ""
	c.pending = ""
	c.mu.Unlock()
	c.notify()
}

// Logout resets the session identity; the next submit re-prompts.
func (c *Controller) Logout() {
	c.ident.Reset()
	c.notify()
}

// send performs the transport call for an already-admitted turn. The caller
// has set busy. echo controls the optimistic user append, which is skipped
// when the message was already echoed before being suspended.
func (c *Controller) send(ctx context.Context, text string, echo bool) {
	sessionID := c.ensureActiveSession()

	if echo {
		user := newUserMessage(text)
		c.store.AppendMessage(sessionID, user)
		c.record(ctx, sessionID, user)
		c.notify()
	}

	st := c.ident.Snapshot()
	resp, err := c.api.Send(ctx, bankapi.ChatRequest{
		Message:    text,
		CustomerID: st.CustomerID,
		SessionID:  st.SessionID,
		Verified:   st.Verified,
	})
	if err != nil {
		// The optimistic user message stays; no rollback.
		c.mu.Lock()
		c.errMsg = err.Error()
		c.busy = false
		c.mu.Unlock()
		c.notify()
		return
	}

	if resp.RequiresVerification {
		c.mu.Lock()
		c.pending = text
		c.pendingEcho = false
		c.awaiting = true
		c.busy = false
		c.mu.Unlock()
		c.notify()
		return
	}

	agent := newAgentMessage(resp)
	if !c.store.AppendMessage(sessionID, agent) {
		// Session deleted while the call was in flight; drop the reply.
		c.logger.Warn("dropping reply for deleted session", "session_id", sessionID)
	} else {
		c.record(ctx, sessionID, agent)
	}

	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) ensureActiveSession() string {
	if id := c.store.ActiveID(); id != "" {
		return id
	}
	return c.store.CreateSession("")
}

func (c *Controller) record(ctx context.Context, sessionID string, m Message) {
	if c.archive == nil {
		return
	}
	c.archive.Record(ctx, "chat", sessionID, string(m.Role), m.Content, m.Flow, m.Timestamp)
}
