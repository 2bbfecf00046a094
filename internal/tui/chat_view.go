package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/twindeck/internal/chat"
	"github.com/kingrea/twindeck/internal/twin"
)

var (
	userMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	twinMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	typingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Italic(true)
)

const transcriptWindow = 12

// chatView renders one conversation. Message state lives in the chat session;
// the view only holds the compose input.
type chatView struct {
	app    *App
	name   string
	twinID string
	input  textinput.Model
}

func newChatView(app *App, target twin.Twin) *chatView {
	input := textinput.New()
	input.Placeholder = "Say something…"
	input.CharLimit = 500
	input.Focus()
	return &chatView{
		app:    app,
		name:   target.DisplayName,
		twinID: target.ID,
		input:  input,
	}
}

func (v *chatView) focusCmd() tea.Cmd {
	return textinput.Blink
}

func (v *chatView) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	// A bare digit on an untouched conversation picks a suggested question.
	if v.input.Value() == "" && len(v.app.session.Messages()) == 0 && len(key) == 1 && key >= "1" && key <= "9" {
		idx := int(key[0] - '1')
		if idx < len(chat.SuggestedQuestions) {
			v.input.SetValue(chat.SuggestedQuestions[idx])
			v.input.CursorEnd()
			return nil
		}
	}
	if key == "enter" {
		text := v.input.Value()
		v.input.SetValue("")
		if err := v.app.session.Send(text); err != nil {
			v.app.setStatus(fmt.Sprintf("Send failed: %v", err))
		}
		return v.app.waitForChatUpdate()
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return cmd
}

func (v *chatView) View() string {
	messages := v.app.session.Messages()
	lines := []string{
		wizardTitleStyle.Render(fmt.Sprintf("Chat · %s", v.name)),
		"",
	}
	if len(messages) == 0 {
		lines = append(lines, selectorOffStyle.Render("Start the conversation, or pick a question:"))
		for i, q := range chat.SuggestedQuestions {
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, q))
		}
	} else {
		start := 0
		if len(messages) > transcriptWindow {
			start = len(messages) - transcriptWindow
		}
		for _, m := range messages[start:] {
			stamp := m.SentAt.Local().Format("15:04")
			switch m.Role {
			case chat.RoleUser:
				lines = append(lines, userMsgStyle.Render(fmt.Sprintf("[%s] You: %s", stamp, m.Content)))
			default:
				lines = append(lines, twinMsgStyle.Render(fmt.Sprintf("[%s] %s: %s", stamp, v.name, m.Content)))
			}
		}
	}
	if v.app.session.Typing() {
		lines = append(lines, typingStyle.Render(fmt.Sprintf("%s is typing…", v.name)))
	}
	lines = append(lines,
		"",
		v.input.View(),
		hintStyle.Render("enter send · esc leave chat"),
	)
	return strings.Join(lines, "\n")
}
