package terminal

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/webhelpdesk/helpdesk/internal/model/chat"
)

// 控制器推送给界面的消息
type (
	messageMsg    struct{ msg chat.Message }
	inputMsg      struct{ text string }
	recordingMsg  struct{ active bool }
	voiceInputMsg struct {
		enabled bool
		label   string
	}
	sendDoneMsg struct{ err error }
	statusMsg   struct{ text string }
)

// channelView 把控制器的界面调用转为 tea.Msg，由 Model 逐条取出。
type channelView struct {
	events    chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

func newChannelView() *channelView {
	return &channelView{
		events: make(chan tea.Msg, 256),
		done:   make(chan struct{}),
	}
}

func (v *channelView) push(msg tea.Msg) {
	select {
	case v.events <- msg:
	case <-v.done:
	}
}

func (v *channelView) AppendMessage(msg chat.Message) {
	v.push(messageMsg{msg: msg})
}

func (v *channelView) SetInput(text string) {
	v.push(inputMsg{text: text})
}

func (v *channelView) SetRecording(recording bool) {
	v.push(recordingMsg{active: recording})
}

func (v *channelView) SetVoiceInput(enabled bool, label string) {
	v.push(voiceInputMsg{enabled: enabled, label: label})
}

// close 界面退出后丢弃后续事件。
func (v *channelView) close() {
	v.closeOnce.Do(func() { close(v.done) })
}

// listen 等待下一条界面事件。
func (v *channelView) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-v.events:
			return msg
		case <-v.done:
			return nil
		}
	}
}
