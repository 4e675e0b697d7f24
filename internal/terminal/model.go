// Package terminal 终端聊天界面，和浏览器页面共用同一个控制器。
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/webhelpdesk/helpdesk/internal/controller"
	"github.com/webhelpdesk/helpdesk/internal/model/chat"
)

// Model bubbletea 模型，只保存界面状态，业务状态在控制器里。
type Model struct {
	ctx  context.Context
	ctrl *controller.Controller
	view *channelView

	input     string
	messages  []chat.Message
	recording bool
	micLabel  string
	status    string
	pending   int
	width     int
	height    int
}

func newModel(ctx context.Context, ctrl *controller.Controller, view *channelView) *Model {
	return &Model{ctx: ctx, ctrl: ctrl, view: view}
}

func (m *Model) Init() tea.Cmd {
	return m.view.listen()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case messageMsg:
		m.messages = append(m.messages, msg.msg)
		return m, m.view.listen()

	case inputMsg:
		m.input = msg.text
		return m, m.view.listen()

	case recordingMsg:
		m.recording = msg.active
		return m, m.view.listen()

	case voiceInputMsg:
		m.micLabel = msg.label
		return m, m.view.listen()

	case sendDoneMsg:
		if m.pending > 0 {
			m.pending--
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.status = msg.err.Error()
		}
		return m, nil

	case statusMsg:
		m.status = msg.text
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.ctrl.StopVoiceCapture()
		return m, tea.Quit

	case "enter":
		m.ctrl.UpdateInput(m.input)
		if strings.TrimSpace(m.input) == "" {
			return m, nil
		}
		m.input = ""
		m.status = ""
		m.pending++
		return m, m.send()

	case "backspace":
		if runes := []rune(m.input); len(runes) > 0 {
			m.input = string(runes[:len(runes)-1])
			m.ctrl.UpdateInput(m.input)
		}
		return m, nil

	case "ctrl+r":
		// 终端收不到按键抬起，第二次按下即松开
		if m.ctrl.Recording() {
			m.ctrl.StopVoiceCapture()
			return m, nil
		}
		if err := m.ctrl.StartVoiceCapture(m.ctx); err != nil {
			m.status = err.Error()
		}
		return m, nil

	case "ctrl+t":
		if !m.ctrl.Capabilities().VoiceOutput {
			m.status = controller.ErrVoiceOutputUnsupported.Error()
			return m, nil
		}
		m.ctrl.SetSpeakEnabled(!m.ctrl.SpeakEnabled())
		return m, nil
	}

	switch msg.Type {
	case tea.KeySpace:
		m.input += " "
		m.ctrl.UpdateInput(m.input)
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		m.ctrl.UpdateInput(m.input)
	}
	return m, nil
}

// send 在后台执行一次发送，允许请求期间继续输入。
func (m *Model) send() tea.Cmd {
	ctx := m.ctx
	ctrl := m.ctrl
	return func() tea.Msg {
		return sendDoneMsg{err: ctrl.HandleSend(ctx)}
	}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Helpdesk"))
	b.WriteString("\n\n")

	messages := m.messages
	if limit := m.height - 6; limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	for _, msg := range messages {
		if msg.Author == chat.AuthorUser {
			b.WriteString(userLabelStyle.Render("You: "))
		} else {
			b.WriteString(botLabelStyle.Render("Bot: "))
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(promptStyle.Render("> "))
	b.WriteString(m.input)
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	return b.String()
}

func (m *Model) statusLine() string {
	caps := m.ctrl.Capabilities()

	var parts []string
	switch {
	case m.recording:
		parts = append(parts, recordingStyle.Render("● recording (Ctrl+R to stop)"))
	case caps.VoiceInput:
		parts = append(parts, statusStyle.Render("Ctrl+R talk"))
	default:
		parts = append(parts, statusStyle.Render(m.micLabel))
	}

	if caps.VoiceOutput {
		speak := "off"
		if m.ctrl.SpeakEnabled() {
			speak = "on"
		}
		parts = append(parts, statusStyle.Render(fmt.Sprintf("Ctrl+T speak: %s", speak)))
	}
	if m.pending > 0 {
		parts = append(parts, statusStyle.Render("waiting for answer..."))
	}
	parts = append(parts, statusStyle.Render("Esc quit"))

	line := strings.Join(parts, statusStyle.Render("  |  "))
	if m.status != "" {
		line += "\n" + errorStyle.Render(m.status)
	}
	return line
}
