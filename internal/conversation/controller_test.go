package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/teller-cli/teller/internal/bankapi"
	"github.com/teller-cli/teller/internal/history"
	"github.com/teller-cli/teller/internal/identity"
)

type fakeChatAPI struct {
	mu         sync.Mutex
	sends      []bankapi.ChatRequest
	verifies   int
	sendResp   *bankapi.ChatResponse
	sendErr    error
	verifyResp *bankapi.VerifyResponse
	verifyErr  error
}

func (f *fakeChatAPI) Send(_ context.Context, req bankapi.ChatRequest) (*bankapi.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sendResp != nil {
		return f.sendResp, nil
	}
	return &bankapi.ChatResponse{Response: "ok"}, nil
}

func (f *fakeChatAPI) Verify(context.Context, string, string) (*bankapi.VerifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyResp != nil {
		return f.verifyResp, nil
	}
	return &bankapi.VerifyResponse{Verified: true}, nil
}

func (f *fakeChatAPI) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func newTestController(t *testing.T, api *fakeChatAPI) (*Controller, *history.Store[Message], *identity.Manager) {
	t.Helper()
	dir := t.TempDir()
	store := history.NewStore(filepath.Join(dir, "chat.json"), MessageContent, nil)
	ident := identity.NewManager(filepath.Join(dir, "identity.json"), nil)
	return NewController(store, ident, api, nil, nil), store, ident
}

func TestSubmitUnverifiedSuspendsMessage(t *testing.T) {
	api := &fakeChatAPI{}
	ctrl, store, _ := newTestController(t, api)

	ctrl.Submit(context.Background(), "what is my balance")

	st := ctrl.State()
	if !st.AwaitingVerification {
		t.Fatal("expected verification prompt after unverified submit")
	}
	if api.sendCount() != 0 {
		t.Fatalf("chat call made before verification: %d sends", api.sendCount())
	}
	if msgs := store.Messages(store.ActiveID()); len(msgs) != 0 {
		t.Fatalf("message echoed while suspended: %v", msgs)
	}
}

func TestVerifyResubmitsPendingExactlyOnce(t *testing.T) {
	api := &fakeChatAPI{}
	ctrl, store, ident := newTestController(t, api)

	ctrl.Submit(context.Background(), "show my cards")
	ctrl.Verify(context.Background(), "CUST001", "1234")

	if !ident.Verified() {
		t.Fatal("identity not marked verified")
	}
	if st := ctrl.State(); st.AwaitingVerification {
		t.Fatal("prompt still open after successful verification")
	}
	if got := api.sendCount(); got != 1 {
		t.Fatalf("pending message sent %d times, want exactly once", got)
	}

	msgs := store.Messages(store.ActiveID())
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want user echo plus reply", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "show my cards" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != RoleAgent {
		t.Errorf("second message role = %q", msgs[1].Role)
	}
}

func TestVerifyRejectionKeepsPending(t *testing.T) {
	api := &fakeChatAPI{verifyResp: &bankapi.VerifyResponse{Verified: false}}
	ctrl, _, _ := newTestController(t, api)

	ctrl.Submit(context.Background(), "transfer history")
	ctrl.Verify(context.Background(), "CUST001", "0000")

	st := ctrl.State()
	if !st.AwaitingVerification {
		t.Fatal("prompt closed on rejected verification")
	}
	if st.VerifyErr != fallbackVerifyErr {
		t.Fatalf("VerifyErr = %q, want fallback message", st.VerifyErr)
	}
	if api.sendCount() != 0 {
		t.Fatal("chat call made despite rejected verification")
	}

	// A retry with good credentials still carries the original message.
	api.mu.Lock()
	api.verifyResp = &bankapi.VerifyResponse{Verified: true}
	api.mu.Unlock()
	ctrl.Verify(context.Background(), "CUST001", "1234")
	if got := api.sendCount(); got != 1 {
		t.Fatalf("pending message sent %d times after retry, want 1", got)
	}
}

func TestVerifyRejectionUsesBackendMessage(t *testing.T) {
	api := &fakeChatAPI{verifyResp: &bankapi.VerifyResponse{Verified: false, Message: "Account locked"}}
	ctrl, _, _ := newTestController(t, api)

	ctrl.Submit(context.Background(), "hello")
	ctrl.Verify(context.Background(), "CUST001", "1234")

	if got := ctrl.State().VerifyErr; got != "Account locked" {
		t.Fatalf("VerifyErr = %q, want backend message", got)
	}
}

func TestCancelVerificationDropsPending(t *testing.T) {
	api := &fakeChatAPI{}
	ctrl, _, _ := newTestController(t, api)

	ctrl.Submit(context.Background(), "balance please")
	ctrl.CancelVerification()
	ctrl.Verify(context.Background(), "CUST001", "1234")

	if api.sendCount() != 0 {
		t.Fatal("cancelled message was still sent after later verification")
	}
}

func TestSendErrorKeepsOptimisticMessage(t *testing.T) {
	api := &fakeChatAPI{sendErr: errors.New("No response from server. Check your connection.")}
	ctrl, store, _ := newTestController(t, api)
	verifyFirst(t, ctrl)

	ctrl.Submit(context.Background(), "am I overdrawn")

	st := ctrl.State()
	if st.Busy {
		t.Fatal("controller still busy after failed turn")
	}
	if st.Err == "" {
		t.Fatal("transport error not surfaced")
	}
	msgs := store.Messages(store.ActiveID())
	if len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Fatalf("optimistic user message not preserved: %v", msgs)
	}

	ctrl.DismissError()
	if got := ctrl.State().Err; got != "" {
		t.Fatalf("Err = %q after dismiss", got)
	}
}

func TestRequiresVerificationRepromptsWithoutDuplicateEcho(t *testing.T) {
	api := &fakeChatAPI{sendResp: &bankapi.ChatResponse{RequiresVerification: true}}
	ctrl, store, _ := newTestController(t, api)
	verifyFirst(t, ctrl)

	ctrl.Submit(context.Background(), "close my account")
	if !ctrl.State().AwaitingVerification {
		t.Fatal("requires_verification reply did not reopen the prompt")
	}

	api.mu.Lock()
	api.sendResp = &bankapi.ChatResponse{Response: "done"}
	api.mu.Unlock()
	ctrl.Verify(context.Background(), "CUST001", "1234")

	msgs := store.Messages(store.ActiveID())
	var userCount int
	for _, m := range msgs {
		if m.Role == RoleUser && m.Content == "close my account" {
			userCount++
		}
	}
	if userCount != 1 {
		t.Fatalf("user message echoed %d times, want 1", userCount)
	}
}

func TestAgentReplyCarriesAttachments(t *testing.T) {
	balance := 2500.75
	api := &fakeChatAPI{sendResp: &bankapi.ChatResponse{
		Response: "Here is your balance",
		Flow:     "balance",
		Balance:  &balance,
	}}
	ctrl, store, _ := newTestController(t, api)
	verifyFirst(t, ctrl)

	ctrl.Submit(context.Background(), "balance")

	msgs := store.Messages(store.ActiveID())
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d", len(msgs))
	}
	agent := msgs[1]
	if agent.Balance == nil || *agent.Balance != balance {
		t.Fatalf("agent balance = %v", agent.Balance)
	}
	if agent.Flow != "balance" {
		t.Errorf("agent flow = %q", agent.Flow)
	}
}

func TestLogoutRequiresReverification(t *testing.T) {
	api := &fakeChatAPI{}
	ctrl, _, ident := newTestController(t, api)
	verifyFirst(t, ctrl)

	before := ident.Snapshot().SessionID
	ctrl.Logout()
	if ident.Verified() {
		t.Fatal("identity still verified after logout")
	}
	if after := ident.Snapshot().SessionID; after == before {
		t.Error("logout did not mint a fresh session token")
	}

	ctrl.Submit(context.Background(), "hello again")
	if !ctrl.State().AwaitingVerification {
		t.Fatal("submit after logout did not re-prompt")
	}
}

// verifyFirst verifies with no pending message so later submits go straight
// through.
func verifyFirst(t *testing.T, ctrl *Controller) {
	t.Helper()
	ctrl.Verify(context.Background(), "CUST001", "1234")
	if !ctrl.State().Verified {
		t.Fatal("setup verification failed")
	}
}
