// Package conversation orchestrates chat turns: verification gating,
// optimistic echo, transport calls, and merging replies into the history
// store. Controllers know nothing about rendering; the UI observes them
// through Subscribe.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/teller-cli/teller/internal/bankapi"
)

// Role tags a message's author. Closed two-value set.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is one text-chat message. Structured banking attachments are only
// ever present on agent messages.
type Message struct {
	ID           string                `json:"id"`
	Role         Role                  `json:"role"`
	Content      string                `json:"content"`
	Timestamp    time.Time             `json:"timestamp"`
	Flow         string                `json:"flow,omitempty"`
	Balance      *float64              `json:"balance,omitempty"`
	Cards        []bankapi.Card        `json:"cards,omitempty"`
	Transactions []bankapi.Transaction `json:"transactions,omitempty"`
}

// VoiceMessage is one voice-chat message. IsVoice marks speech-originated
// user messages; AudioPath references the synthesized clip of agent replies.
type VoiceMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Flow      string    `json:"flow,omitempty"`
	IsVoice   bool      `json:"is_voice"`
	AudioPath string    `json:"audio_path,omitempty"`
}

// MessageContent extracts display text; used for session title derivation.
func MessageContent(m Message) string { return m.Content }

// VoiceMessageContent extracts display text; used for session title derivation.
func VoiceMessageContent(m VoiceMessage) string { return m.Content }

func newMessageID() string { return uuid.NewString() }

func newUserMessage(content string) Message {
	return Message{
		ID:        newMessageID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func newAgentMessage(resp *bankapi.ChatResponse) Message {
	return Message{
		ID:           newMessageID(),
		Role:         RoleAgent,
		Content:      resp.Response,
		Timestamp:    time.Now(),
		Flow:         resp.Flow,
		Balance:      resp.Balance,
		Cards:        resp.Cards,
		Transactions: resp.Transactions,
	}
}
