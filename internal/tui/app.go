// Package tui is the terminal presentation layer. It renders from the
// history stores and controller state and dispatches intents back through
// the controllers; it owns no business logic.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	units "github.com/docker/go-units"

	"github.com/teller-cli/teller/internal/archive"
	"github.com/teller-cli/teller/internal/audio"
	"github.com/teller-cli/teller/internal/conversation"
	"github.com/teller-cli/teller/internal/history"
)

type view int

const (
	viewChat view = iota
	viewVoice
)

type mode int

const (
	modeInput mode = iota
	modeSidebar
	modeVerify
	modeConfirmDelete
	modeSearch
)

// RefreshMsg re-renders from current store/controller state. Controllers
// push it through their subscribers; commands return it on completion.
type RefreshMsg struct{}

type recordingDoneMsg struct{ res audio.Result }

type verifyDoneMsg struct{}

type recTickMsg struct{}

type searchDoneMsg struct {
	entries []archive.Entry
	err     error
}

// Deps is everything the UI renders from and dispatches to.
type Deps struct {
	Chat       *conversation.Controller
	Voice      *conversation.Voice
	ChatStore  *history.Store[conversation.Message]
	VoiceStore *history.Store[conversation.VoiceMessage]
	Archive    *archive.Archive // nil disables history search
	Recorder   *audio.Recorder  // nil hides the recording affordance
	BaseURL    func() string    // read per render so config hot reload shows
}

// Model is the bubbletea model for the whole client.
type Model struct {
	deps Deps

	view   view
	mode   mode
	width  int
	height int

	input       textinput.Model
	custInput   textinput.Model
	pinInput    textinput.Model
	verifyFocus int
	verifyFor   view

	cursor    int
	confirmID string

	searchInput   textinput.Model
	searchResults []archive.Entry
	searchErr     string
	searchRan     bool

	recErr       string
	lastClipSize string

	quitting bool
}

// NewModel builds the initial UI state.
func NewModel(deps Deps) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 500
	input.Focus()

	cust := textinput.New()
	cust.Placeholder = "Customer ID (e.g. CUST001)"
	cust.CharLimit = 32

	pin := textinput.New()
	pin.Placeholder = "PIN"
	pin.CharLimit = 12
	pin.EchoMode = textinput.EchoPassword

	search := textinput.New()
	search.Placeholder = "Search history..."
	search.CharLimit = 100

	return Model{
		deps:        deps,
		input:       input,
		custInput:   cust,
		pinInput:    pin,
		searchInput: search,
		width:       100,
		height:      30,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case RefreshMsg:
		// A controller requesting verification pulls the modal up.
		if m.mode == modeInput {
			if aw, target := m.awaiting(); aw {
				m = m.openVerify(target)
			}
		}
		return m, nil

	case recordingDoneMsg:
		m.deps.Voice.SetListening(false)
		if msg.res.Err != nil {
			m.recErr = msg.res.Err.Error()
			return m, nil
		}
		m.recErr = ""
		m.lastClipSize = units.HumanSize(float64(len(msg.res.WAV)))
		wav := msg.res.WAV
		voice := m.deps.Voice
		return m, func() tea.Msg {
			voice.HandleRecording(context.Background(), wav)
			return RefreshMsg{}
		}

	case recTickMsg:
		if m.deps.Recorder != nil && m.deps.Recorder.Recording() {
			return m, recTick()
		}
		return m, nil

	case verifyDoneMsg:
		var awaiting bool
		if m.verifyFor == viewVoice {
			awaiting = m.deps.Voice.State().AwaitingVerification
		} else {
			awaiting = m.deps.Chat.State().AwaitingVerification
		}
		if !awaiting {
			m.mode = modeInput
			m.custInput.Blur()
			m.pinInput.Blur()
			m.input.Focus()
		}
		return m, nil

	case searchDoneMsg:
		m.searchRan = true
		if msg.err != nil {
			m.searchErr = msg.err.Error()
		} else {
			m.searchErr = ""
			m.searchResults = msg.entries
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeInput:
			return m.updateInput(msg)
		case modeSidebar:
			return m.updateSidebar(msg)
		case modeVerify:
			return m.updateVerify(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		case modeSearch:
			return m.updateSearch(msg)
		}
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		if m.view == viewChat {
			m.view = viewVoice
		} else {
			m.view = viewChat
		}
		return m, nil

	case "ctrl+b":
		m.mode = modeSidebar
		m.cursor = 0
		m.input.Blur()
		return m, nil

	case "ctrl+n":
		m.activeCreate()
		return m, nil

	case "ctrl+f":
		if m.deps.Archive != nil {
			m.mode = modeSearch
			m.searchRan = false
			m.searchResults = nil
			m.searchErr = ""
			m.input.Blur()
			m.searchInput.Focus()
		}
		return m, nil

	case "ctrl+l":
		m.deps.Chat.Logout()
		return m, nil

	case "ctrl+r":
		if m.view == viewVoice && m.deps.Recorder != nil {
			return m.toggleRecording()
		}
		return m, nil

	case "ctrl+p":
		if m.view == viewVoice {
			m.deps.Voice.StopPlayback()
		}
		return m, nil

	case "ctrl+o":
		if m.view == viewVoice {
			msgs := m.deps.VoiceStore.Messages(m.deps.VoiceStore.ActiveID())
			for i := len(msgs) - 1; i >= 0; i-- {
				if msgs[i].AudioPath != "" {
					m.deps.Voice.Replay(msgs[i].AudioPath)
					break
				}
			}
		}
		return m, nil

	case "esc":
		m.recErr = ""
		if m.view == viewChat {
			m.deps.Chat.DismissError()
		} else {
			m.deps.Voice.DismissError()
		}
		return m, nil

	case "enter":
		text := m.input.Value()
		if text == "" {
			return m, nil
		}
		if m.busy() {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.submitCmd(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	metas := m.activeList()
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc", "ctrl+b":
		m.mode = modeInput
		m.input.Focus()
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(metas)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		if m.cursor < len(metas) {
			m.activeSetActive(metas[m.cursor].ID)
			m.mode = modeInput
			m.input.Focus()
		}
		return m, nil

	case "n":
		m.activeCreate()
		m.cursor = 0
		return m, nil

	case "d":
		if m.cursor < len(metas) {
			m.confirmID = metas[m.cursor].ID
			m.mode = modeConfirmDelete
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.activeDelete(m.confirmID)
		m.confirmID = ""
		m.mode = modeSidebar
		if m.cursor > 0 {
			m.cursor--
		}
	case "n", "N", "esc":
		m.confirmID = ""
		m.mode = modeSidebar
	}
	return m, nil
}

func (m Model) updateVerify(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.verifyFor == viewChat {
			m.deps.Chat.CancelVerification()
		} else {
			m.deps.Voice.CancelVerification()
		}
		m.mode = modeInput
		m.custInput.Blur()
		m.pinInput.Blur()
		m.input.Focus()
		return m, nil

	case "tab", "up", "down":
		m.verifyFocus = 1 - m.verifyFocus
		if m.verifyFocus == 0 {
			m.custInput.Focus()
			m.pinInput.Blur()
		} else {
			m.pinInput.Focus()
			m.custInput.Blur()
		}
		return m, nil

	case "enter":
		cust, pin := m.custInput.Value(), m.pinInput.Value()
		if cust == "" || pin == "" {
			return m, nil
		}
		return m, m.verifyCmd(cust, pin)
	}

	var cmd tea.Cmd
	if m.verifyFocus == 0 {
		m.custInput, cmd = m.custInput.Update(msg)
	} else {
		m.pinInput, cmd = m.pinInput.Update(msg)
	}
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.mode = modeInput
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.input.Focus()
		return m, nil

	case "enter":
		query := m.searchInput.Value()
		if query == "" {
			return m, nil
		}
		return m, m.searchCmd(query)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) openVerify(target view) Model {
	m.mode = modeVerify
	m.verifyFor = target
	m.verifyFocus = 0
	m.custInput.SetValue("")
	m.pinInput.SetValue("")
	m.custInput.Focus()
	m.pinInput.Blur()
	m.input.Blur()
	return m
}

func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	rec := m.deps.Recorder
	if rec.Recording() {
		rec.Stop()
		return m, nil
	}
	ch := make(chan audio.Result, 1)
	if err := rec.Start(func(res audio.Result) { ch <- res }); err != nil {
		m.recErr = err.Error()
		return m, nil
	}
	m.recErr = ""
	m.deps.Voice.SetListening(true)
	return m, tea.Batch(
		func() tea.Msg { return recordingDoneMsg{res: <-ch} },
		recTick(),
	)
}

func recTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return recTickMsg{} })
}

func (m Model) submitCmd(text string) tea.Cmd {
	chat, voice, active := m.deps.Chat, m.deps.Voice, m.view
	return func() tea.Msg {
		if active == viewVoice {
			voice.Submit(context.Background(), text)
		} else {
			chat.Submit(context.Background(), text)
		}
		return RefreshMsg{}
	}
}

func (m Model) verifyCmd(cust, pin string) tea.Cmd {
	chat, voice, target := m.deps.Chat, m.deps.Voice, m.verifyFor
	return func() tea.Msg {
		if target == viewVoice {
			voice.Verify(context.Background(), cust, pin)
		} else {
			chat.Verify(context.Background(), cust, pin)
		}
		return verifyDoneMsg{}
	}
}

func (m Model) searchCmd(query string) tea.Cmd {
	arch := m.deps.Archive
	return func() tea.Msg {
		entries, err := arch.Search(context.Background(), query, 30)
		return searchDoneMsg{entries: entries, err: err}
	}
}

// awaiting reports which controller, if any, wants the verification modal.
func (m Model) awaiting() (bool, view) {
	if m.deps.Chat.State().AwaitingVerification {
		return true, viewChat
	}
	if m.deps.Voice.State().AwaitingVerification {
		return true, viewVoice
	}
	return false, viewChat
}

func (m Model) busy() bool {
	if m.view == viewVoice {
		return m.deps.Voice.State().Busy
	}
	return m.deps.Chat.State().Busy
}

func (m Model) activeList() []history.Meta {
	if m.view == viewVoice {
		return m.deps.VoiceStore.List()
	}
	return m.deps.ChatStore.List()
}

func (m *Model) activeCreate() {
	if m.view == viewVoice {
		m.deps.VoiceStore.CreateSession("")
	} else {
		m.deps.ChatStore.CreateSession("")
	}
}

func (m *Model) activeSetActive(id string) {
	if m.view == viewVoice {
		m.deps.VoiceStore.SetActive(id)
	} else {
		m.deps.ChatStore.SetActive(id)
	}
}

func (m *Model) activeDelete(id string) {
	if m.view == viewVoice {
		m.deps.VoiceStore.DeleteSession(id)
	} else {
		m.deps.ChatStore.DeleteSession(id)
	}
}
