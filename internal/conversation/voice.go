package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teller-cli/teller/internal/bankapi"
	"github.com/teller-cli/teller/internal/history"
	"github.com/teller-cli/teller/internal/identity"
)

// VoiceAPI is the slice of the transport client a voice controller needs.
type VoiceAPI interface {
	Transcribe(ctx context.Context, audio []byte) (*bankapi.TranscribeResponse, error)
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	VoiceChat(ctx context.Context, req bankapi.VoiceChatRequest) (*bankapi.VoiceChatResponse, error)
	Verify(ctx context.Context, customerID, pin string) (*bankapi.VerifyResponse, error)
}

// Player is the single-slot audio playback the voice controller drives.
type Player interface {
	Play(path string, done func(error)) error
	Stop()
}

// ProcessingStatus is the coarse phase shown next to the recording control.
type ProcessingStatus string

const (
	StatusIdle         ProcessingStatus = "idle"
	StatusListening    ProcessingStatus = "listening"
	StatusTranscribing ProcessingStatus = "transcribing"
	StatusThinking     ProcessingStatus = "thinking"
	StatusSpeaking     ProcessingStatus = "speaking"
)

// VoiceState is what the UI reads from a voice controller between renders.
type VoiceState struct {
	Busy                 bool
	Status               ProcessingStatus
	Err                  string
	AwaitingVerification bool
	VerifyErr            string
	Verified             bool
	Playing              bool
}

// settleDelay lets the user finish speaking across brief pauses before the
// captured clip is auto-submitted.
const settleDelay = 2 * time.Second

// Voice runs voice chat turns: transcription, the chat round trip, reply
// synthesis, and playback. Same gating shape as the text controller.
type Voice struct {
	store    *history.Store[VoiceMessage]
	ident    *identity.Manager
	api      VoiceAPI
	player   Player
	archive  Archiver
	logger   *slog.Logger
	voice    string // synthesis voice name
	audioDir string
	settle   time.Duration

	mu            sync.Mutex
	busy          bool
	status        ProcessingStatus
	errMsg        string
	awaiting      bool
	verifyErr     string
	pending       string
	pendingEcho   bool
	pendingSpeech bool // whether pending came from transcription
	playing       bool
	subs          []func()
}

// NewVoice wires a voice controller. Synthesized clips land under audioDir.
// archive may be nil.
func NewVoice(store *history.Store[VoiceMessage], ident *identity.Manager, api VoiceAPI, player Player, archive Archiver, voice, audioDir string, logger *slog.Logger) *Voice {
	if logger == nil {
		logger = slog.Default()
	}
	if voice == "" {
		voice = bankapi.DefaultVoice
	}
	return &Voice{
		store:    store,
		ident:    ident,
		api:      api,
		player:   player,
		archive:  archive,
		logger:   logger,
		voice:    voice,
		audioDir: audioDir,
		settle:   settleDelay,
		status:   StatusIdle,
	}
}

// Subscribe registers fn to run after every state change.
func (v *Voice) Subscribe(fn func()) {
	v.mu.Lock()
	v.subs = append(v.subs, fn)
	v.mu.Unlock()
}

func (v *Voice) notify() {
	v.mu.Lock()
	subs := make([]func(), len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// State returns a snapshot for rendering.
func (v *Voice) State() VoiceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return VoiceState{
		Busy:                 v.busy,
		Status:               v.status,
		Err:                  v.errMsg,
		AwaitingVerification: v.awaiting,
		VerifyErr:            v.verifyErr,
		Verified:             v.ident.Verified(),
		Playing:              v.playing,
	}
}

// SetListening reflects recorder state into the processing status.
func (v *Voice) SetListening(on bool) {
	v.mu.Lock()
	if on {
		v.status = StatusListening
	} else if v.status == StatusListening {
		v.status = StatusIdle
	}
	v.mu.Unlock()
	v.notify()
}

// DismissError clears the surfaced error.
func (v *Voice) DismissError() {
	v.mu.Lock()
	v.errMsg = ""
	v.mu.Unlock()
	v.notify()
}

// HandleRecording transcribes a captured clip and auto-submits the text as
// if typed, after the settle delay.
func (v *Voice) HandleRecording(ctx context.Context, wav []byte) {
	v.mu.Lock()
	if v.busy {
		v.mu.Unlock()
		return
	}
	v.busy = true
	v.status = StatusTranscribing
	v.errMsg = ""
	v.mu.Unlock()
	v.notify()

	time.Sleep(v.settle)

	resp, err := v.api.Transcribe(ctx, wav)
	if err != nil {
		v.fail(err.Error())
		return
	}
	v.submitAdmitted(ctx, resp.Text, true, true)
}

// Submit runs one typed voice-view turn.
func (v *Voice) Submit(ctx context.Context, text string) {
	v.mu.Lock()
	if v.busy {
		v.mu.Unlock()
		return
	}
	v.busy = true
	v.errMsg = ""
	v.mu.Unlock()
	v.notify()

	v.submitAdmitted(ctx, text, false, true)
}

// submitAdmitted runs the gating and round trip for a turn that already
// holds the busy slot.
func (v *Voice) submitAdmitted(ctx context.Context, text string, fromSpeech, echo bool) {
	if !v.ident.Verified() {
		v.mu.Lock()
		v.pending = text
		v.pendingEcho = echo
		v.pendingSpeech = fromSpeech
		v.awaiting = true
		v.busy = false
		v.status = StatusIdle
		v.mu.Unlock()
		v.notify()
		return
	}
	v.send(ctx, text, fromSpeech, echo)
}

// Verify mirrors the text controller: on success the suspended message is
// resubmitted exactly once.
func (v *Voice) Verify(ctx context.Context, customerID, pin string) {
	resp, err := v.api.Verify(ctx, customerID, pin)
	if err != nil {
		v.mu.Lock()
		v.verifyErr = err.Error()
		v.mu.Unlock()
		v.notify()
		return
	}
	if !resp.Verified {
		msg := resp.Message
		if msg == "" {
			msg = fallbackVerifyErr
		}
		v.mu.Lock()
		v.verifyErr = msg
		v.mu.Unlock()
		v.notify()
		return
	}

	v.ident.SetVerified(customerID, resp.Customer)

	v.mu.Lock()
	v.awaiting = false
	v.verifyErr = ""
	pending, echo, fromSpeech := v.pending, v.pendingEcho, v.pendingSpeech
	v.pending = ""
	v.busy = pending != ""
	v.mu.Unlock()
	v.notify()

	if pending != "" {
		v.send(ctx, pending, fromSpeech, echo)
	}
}

// CancelVerification closes the prompt and drops the suspended message.
func (v *Voice) CancelVerification() {
	v.mu.Lock()
	v.awaiting = false
	v.verifyErr = ""
	v.pending = ""
	v.pendingSpeech = false
	v.mu.Unlock()
	v.notify()
}

// Logout resets the session identity.
func (v *Voice) Logout() {
	v.ident.Reset()
	v.notify()
}

// StopPlayback stops the current clip, if any.
func (v *Voice) StopPlayback() {
	v.player.Stop()
	v.mu.Lock()
	v.playing = false
	if v.status == StatusSpeaking {
		v.status = StatusIdle
	}
	v.mu.Unlock()
	v.notify()
}

func (v *Voice) send(ctx context.Context, text string, fromSpeech, echo bool) {
	sessionID := v.ensureActiveSession()

	v.setStatus(StatusThinking)

	if echo {
		user := newVoiceUserMessage(text, fromSpeech)
		v.store.AppendMessage(sessionID, user)
		v.record(ctx, sessionID, user)
		v.notify()
	}

	st := v.ident.Snapshot()
	resp, err := v.api.VoiceChat(ctx, bankapi.VoiceChatRequest{
		Message:    text,
		CustomerID: st.CustomerID,
		Verified:   st.Verified,
		SessionID:  st.SessionID,
	})
	if err != nil {
		v.fail(err.Error())
		return
	}

	if resp.RequiresVerification {
		v.mu.Lock()
		v.pending = text
		v.pendingEcho = false
		v.pendingSpeech = fromSpeech
		v.awaiting = true
		v.busy = false
		v.status = StatusIdle
		v.mu.Unlock()
		v.notify()
		return
	}

	agent := newVoiceAgentMessage(resp)
	if !v.store.AppendMessage(sessionID, agent) {
		v.logger.Warn("dropping reply for deleted session", "session_id", sessionID)
		v.finishTurn()
		return
	}
	v.record(ctx, sessionID, agent)
	agentIndex := len(v.store.Messages(sessionID)) - 1
	v.notify()

	v.speak(ctx, sessionID, agentIndex, resp.TextResponse)
}

// speak synthesizes the reply, attaches the clip to the agent message, and
// starts playback. Failures here are scoped: the reply text already stands.
func (v *Voice) speak(ctx context.Context, sessionID string, agentIndex int, text string) {
	v.setStatus(StatusSpeaking)

	audio, err := v.api.Synthesize(ctx, text, v.voice)
	if err != nil {
		v.logger.Warn("synthesis failed", "error", err)
		v.fail(err.Error())
		return
	}

	path, err := v.writeClip(audio)
	if err != nil {
		v.logger.Warn("failed to store synthesized clip", "error", err)
		v.fail("Could not store the reply audio")
		return
	}
	v.store.AmendMessage(sessionID, agentIndex, func(m *VoiceMessage) {
		m.AudioPath = path
	})

	v.mu.Lock()
	v.playing = true
	v.busy = false
	v.mu.Unlock()
	v.notify()

	if err := v.player.Play(path, func(playErr error) {
		if playErr != nil {
			v.logger.Warn("playback failed", "error", playErr)
		}
		v.mu.Lock()
		v.playing = false
		if v.status == StatusSpeaking {
			v.status = StatusIdle
		}
		v.mu.Unlock()
		v.notify()
	}); err != nil {
		v.mu.Lock()
		v.playing = false
		v.status = StatusIdle
		v.errMsg = err.Error()
		v.mu.Unlock()
		v.notify()
	}
}

// Replay plays a previously synthesized clip from the history.
func (v *Voice) Replay(path string) {
	v.mu.Lock()
	v.playing = true
	v.status = StatusSpeaking
	v.mu.Unlock()
	v.notify()

	if err := v.player.Play(path, func(error) {
		v.mu.Lock()
		v.playing = false
		if v.status == StatusSpeaking {
			v.status = StatusIdle
		}
		v.mu.Unlock()
		v.notify()
	}); err != nil {
		v.mu.Lock()
		v.playing = false
		v.status = StatusIdle
		v.errMsg = err.Error()
		v.mu.Unlock()
		v.notify()
	}
}

func (v *Voice) writeClip(audio []byte) (string, error) {
	if err := os.MkdirAll(v.audioDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(v.audioDir, fmt.Sprintf("reply-%d.mp3", time.Now().UnixNano()))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (v *Voice) ensureActiveSession() string {
	if id := v.store.ActiveID(); id != "" {
		return id
	}
	return v.store.CreateSession("")
}

func (v *Voice) fail(msg string) {
	v.mu.Lock()
	v.errMsg = msg
	v.busy = false
	v.status = StatusIdle
	v.mu.Unlock()
	v.notify()
}

func (v *Voice) finishTurn() {
	v.mu.Lock()
	v.busy = false
	v.status = StatusIdle
	v.mu.Unlock()
	v.notify()
}

func (v *Voice) setStatus(s ProcessingStatus) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
	v.notify()
}

func (v *Voice) record(ctx context.Context, sessionID string, m VoiceMessage) {
	if v.archive == nil {
		return
	}
	v.archive.Record(ctx, "voice", sessionID, string(m.Role), m.Content, m.Flow, m.Timestamp)
}

func newVoiceUserMessage(content string, fromSpeech bool) VoiceMessage {
	return VoiceMessage{
		ID:        newMessageID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		IsVoice:   fromSpeech,
	}
}

func newVoiceAgentMessage(resp *bankapi.VoiceChatResponse) VoiceMessage {
	return VoiceMessage{
		ID:        newMessageID(),
		Role:      RoleAgent,
		Content:   resp.TextResponse,
		Timestamp: time.Now(),
		Flow:      resp.Flow,
	}
}
