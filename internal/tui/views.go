package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teller-cli/teller/internal/conversation"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.mode {
	case modeVerify:
		return m.frame(m.verifyView())
	case modeSearch:
		return m.frame(m.searchView())
	}

	main := m.mainView(m.bodyWidth())
	if m.mode == modeSidebar || m.mode == modeConfirmDelete {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), main)
	}
	return m.frame(main)
}

func (m Model) frame(body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.statusBarView())
}

const sidebarWidth = 28

func (m Model) bodyWidth() int {
	w := m.width
	if m.mode == modeSidebar || m.mode == modeConfirmDelete {
		w -= sidebarWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

// bodyHeight is the room left for the message scrollback after the fixed rows.
func (m Model) bodyHeight() int {
	h := m.height - 6
	if m.view == viewVoice {
		h -= 2
	}
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) headerView() string {
	chatTab := dimStyle.Render(" Chat ")
	voiceTab := dimStyle.Render(" Voice ")
	if m.view == viewChat {
		chatTab = titleStyle.Render(" Chat ")
	} else {
		voiceTab = titleStyle.Render(" Voice ")
	}
	badge := ""
	if m.deps.Chat.State().Verified || m.deps.Voice.State().Verified {
		badge = statusActiveStyle.Render(" verified")
	}
	baseURL := ""
	if m.deps.BaseURL != nil {
		baseURL = m.deps.BaseURL()
	}
	return headerStyle.Render("Teller") + " " + chatTab + voiceTab + badge +
		"  " + dimStyle.Render(baseURL)
}

func (m Model) statusBarView() string {
	var help string
	switch m.mode {
	case modeSidebar:
		help = "j/k move  enter open  n new  d delete  esc close"
	case modeConfirmDelete:
		help = "delete this conversation? y/n"
	case modeVerify:
		help = "tab switch field  enter verify  esc cancel"
	case modeSearch:
		help = "enter search  esc close"
	default:
		help = "tab switch view  ctrl+b sessions  ctrl+n new  ctrl+f search  ctrl+l logout  ctrl+c quit"
		if m.view == viewVoice && m.deps.Recorder != nil {
			help = "ctrl+r record  ctrl+p stop audio  " + help
		}
	}
	return statusBarStyle.Width(m.width).Render(helpStyle.Render(help))
}

func (m Model) mainView(width int) string {
	var sections []string

	if banner := m.errorBanner(width); banner != "" {
		sections = append(sections, banner)
	}

	sections = append(sections, tailClip(m.messagesView(width), m.bodyHeight()))

	if m.view == viewVoice {
		sections = append(sections, m.voiceStatusView())
	}

	m.input.Width = width - 4
	sections = append(sections, m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) errorBanner(width int) string {
	var errMsg string
	if m.view == viewVoice {
		errMsg = m.deps.Voice.State().Err
	} else {
		errMsg = m.deps.Chat.State().Err
	}
	if errMsg == "" {
		errMsg = m.recErr
	}
	if errMsg == "" {
		return ""
	}
	return errorStyle.Width(width).Render(errMsg + "  (esc to dismiss)")
}

func (m Model) messagesView(width int) string {
	if m.view == viewVoice {
		return m.voiceMessagesView(width)
	}
	store := m.deps.ChatStore
	msgs := store.Messages(store.ActiveID())
	if len(msgs) == 0 {
		return dimStyle.Render("No messages yet. Ask about your balance, cards, or transactions.")
	}
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, renderChatMessage(msg, width))
	}
	if m.deps.Chat.State().Busy {
		blocks = append(blocks, dimStyle.Render("thinking..."))
	}
	return strings.Join(blocks, "\n")
}

func renderChatMessage(msg conversation.Message, width int) string {
	parts := []string{
		roleLabel(msg.Role) + " " + dimStyle.Render(msg.Timestamp.Format("15:04")),
		lipgloss.NewStyle().Width(width - 2).Render(msg.Content),
	}
	if msg.Balance != nil {
		parts = append(parts, renderBalance(*msg.Balance, width-4))
	}
	if len(msg.Cards) > 0 {
		parts = append(parts, renderCards(msg.Cards, width-4))
	}
	if len(msg.Transactions) > 0 {
		parts = append(parts, renderTransactions(msg.Transactions, width-4))
	}
	return strings.Join(parts, "\n")
}

func (m Model) voiceMessagesView(width int) string {
	store := m.deps.VoiceStore
	msgs := store.Messages(store.ActiveID())
	if len(msgs) == 0 {
		return dimStyle.Render("No messages yet. Record with ctrl+r or type below.")
	}
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		head := roleLabel(msg.Role) + " " + dimStyle.Render(msg.Timestamp.Format("15:04"))
		if msg.IsVoice {
			head += " " + dimStyle.Render("(spoken)")
		}
		if msg.AudioPath != "" {
			head += " " + dimStyle.Render("[audio, ctrl+o replay]")
		}
		body := lipgloss.NewStyle().Width(width - 2).Render(msg.Content)
		blocks = append(blocks, head+"\n"+body)
	}
	return strings.Join(blocks, "\n")
}

func roleLabel(role conversation.Role) string {
	if role == conversation.RoleUser {
		return userRoleStyle.Render(" You ")
	}
	return agentRoleStyle.Render(" Teller ")
}

func (m Model) voiceStatusView() string {
	st := m.deps.Voice.State()
	if m.deps.Recorder != nil && m.deps.Recorder.Recording() {
		return recordingStyle.Render(fmt.Sprintf("● recording %.1fs", m.deps.Recorder.Elapsed().Seconds())) +
			dimStyle.Render("  (ctrl+r to stop, auto-stops at 5s)")
	}
	line := ""
	switch st.Status {
	case conversation.StatusTranscribing:
		line = "transcribing..."
	case conversation.StatusThinking:
		line = "thinking..."
	case conversation.StatusSpeaking:
		line = "speaking..."
	default:
		if m.deps.Recorder == nil {
			line = "audio capture unavailable; type your message instead"
		} else {
			line = "ready"
		}
	}
	out := dimStyle.Render(line)
	if m.lastClipSize != "" {
		out += dimStyle.Render("  last clip " + m.lastClipSize)
	}
	return out
}

func (m Model) sidebarView() string {
	metas := m.activeList()
	lines := []string{titleStyle.Render(" Sessions ")}
	if len(metas) == 0 {
		lines = append(lines, dimStyle.Render(" (none)"))
	}
	activeID := m.deps.ChatStore.ActiveID()
	if m.view == viewVoice {
		activeID = m.deps.VoiceStore.ActiveID()
	}
	for i, meta := range metas {
		title := meta.Title
		if title == "" {
			title = "New conversation"
		}
		title = truncateCell(title, sidebarWidth-4)
		marker := "  "
		if meta.ID == activeID {
			marker = "* "
		}
		row := marker + title
		if i == m.cursor {
			if m.mode == modeConfirmDelete && meta.ID == m.confirmID {
				row = errorStyle.Render(marker + title + " delete? y/n")
			} else {
				row = selectedStyle.Render(row)
			}
		} else {
			row = normalStyle.Render(row)
		}
		lines = append(lines, row)
	}
	return sidebarStyle.Width(sidebarWidth).Height(m.bodyHeight() + 2).
		Render(strings.Join(lines, "\n"))
}

func (m Model) verifyView() string {
	st := m.deps.Chat.State()
	if m.verifyFor == viewVoice {
		vs := m.deps.Voice.State()
		st = conversation.State{VerifyErr: vs.VerifyErr}
	}
	m.custInput.Width = 34
	m.pinInput.Width = 34
	lines := []string{
		titleStyle.Render(" Identity verification "),
		"",
		"This request needs identity verification.",
		"",
		m.custInput.View(),
		m.pinInput.View(),
	}
	if st.VerifyErr != "" {
		lines = append(lines, "", errorStyle.Render(st.VerifyErr))
	}
	modal := modalStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.bodyHeight()+2, lipgloss.Center, lipgloss.Center, modal)
}

func (m Model) searchView() string {
	m.searchInput.Width = m.width - 8
	lines := []string{
		titleStyle.Render(" History search "),
		m.searchInput.View(),
		"",
	}
	switch {
	case m.searchErr != "":
		lines = append(lines, errorStyle.Render(m.searchErr))
	case m.searchRan && len(m.searchResults) == 0:
		lines = append(lines, dimStyle.Render("No matches."))
	default:
		for _, e := range m.searchResults {
			head := dimStyle.Render(e.Timestamp.Format("Jan 02 15:04")) + " " +
				dimStyle.Render("["+e.Channel+"]") + " " + roleLabelString(e.Role)
			lines = append(lines, head+" "+truncateCell(e.Content, m.width-30))
		}
	}
	return tailClip(strings.Join(lines, "\n"), m.bodyHeight()+2)
}

func roleLabelString(role string) string {
	if role == string(conversation.RoleUser) {
		return userRoleStyle.Render(" You ")
	}
	return agentRoleStyle.Render(" Teller ")
}

// tailClip keeps the most recent h lines so the view tracks the newest message.
func tailClip(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= h {
		return s
	}
	return strings.Join(lines[len(lines)-h:], "\n")
}
