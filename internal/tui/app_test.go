package tui

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/teller-cli/teller/internal/bankapi"
	"github.com/teller-cli/teller/internal/conversation"
	"github.com/teller-cli/teller/internal/history"
	"github.com/teller-cli/teller/internal/identity"
)

func newTestModel(t *testing.T, client *bankapi.Client) Model {
	t.Helper()
	dir := t.TempDir()
	chatStore := history.NewStore(filepath.Join(dir, "chat.json"), conversation.MessageContent, nil)
	voiceStore := history.NewStore(filepath.Join(dir, "voice.json"), conversation.VoiceMessageContent, nil)
	ident := identity.NewManager(filepath.Join(dir, "identity.json"), nil)
	chat := conversation.NewController(chatStore, ident, client, nil, nil)
	voice := conversation.NewVoice(voiceStore, ident, client, nil, nil, "", filepath.Join(dir, "audio"), nil)
	return NewModel(Deps{
		Chat:       chat,
		Voice:      voice,
		ChatStore:  chatStore,
		VoiceStore: voiceStore,
		BaseURL:    client.BaseURL,
	})
}

func TestHeaderTracksBaseURL(t *testing.T) {
	client := bankapi.New("http://localhost:8000", nil)
	m := newTestModel(t, client)

	if header := m.headerView(); !strings.Contains(header, "http://localhost:8000") {
		t.Fatalf("header %q missing initial base URL", header)
	}

	// A config hot reload rebases the client; the header must follow.
	client.SetBaseURL("http://bank.internal:9000")
	if header := m.headerView(); !strings.Contains(header, "http://bank.internal:9000") {
		t.Fatalf("header %q still shows the pre-reload address", header)
	}
}
