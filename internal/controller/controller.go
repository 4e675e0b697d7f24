// Package controller 实现聊天界面控制器：消息渲染、提问、按键说话与朗读。
// 具体界面（浏览器、终端）通过 View 接入。
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/webhelpdesk/helpdesk/internal/model/chat"
	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	"github.com/webhelpdesk/helpdesk/internal/observability"
)

const (
	// ErrorReply 请求失败时展示给用户的机器人消息。
	ErrorReply = "Sorry, something went wrong. Please try again."
	// VoiceUnsupportedLabel 不支持语音输入时麦克风控件上的提示。
	VoiceUnsupportedLabel = "Voice input is not supported in this environment"
	// DefaultLocale 识别与合成使用的固定语言。
	DefaultLocale = "en-US"
)

var (
	ErrEmptyQuestion          = errors.New("question is empty")
	ErrVoiceInputUnsupported  = errors.New("voice input is not supported")
	ErrVoiceOutputUnsupported = errors.New("voice output is not supported")
	ErrAlreadyRecording       = errors.New("a voice capture is already in progress")
)

// View 界面需要实现的最小能力。
type View interface {
	AppendMessage(msg chat.Message) // 追加并滚动到最新一条
	SetInput(text string)
	SetRecording(recording bool)
	SetVoiceInput(enabled bool, label string)
}

// Asker 远端问答服务。
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Recognizer 语音识别引擎。
type Recognizer interface {
	Start(ctx context.Context, opts speechmodel.RecognitionOptions) (speechmodel.RecognitionSession, error)
}

// Synthesizer 语音合成引擎。
type Synthesizer interface {
	Cancel()
	Speak(ctx context.Context, text, locale string) error
}

// Capabilities 启动时探测一次的能力标记。
type Capabilities struct {
	VoiceInput  bool
	VoiceOutput bool
}

// Probe 探测语音能力。组件实现 Available() bool 时以其结果为准。
func Probe(r Recognizer, s Synthesizer) Capabilities {
	return Capabilities{
		VoiceInput:  available(r),
		VoiceOutput: available(s),
	}
}

func available(component any) bool {
	if component == nil {
		return false
	}
	if probe, ok := component.(interface{ Available() bool }); ok {
		return probe.Available()
	}
	return true
}

// Options configures Controller.
type Options struct {
	View         View
	Asker        Asker
	Recognizer   Recognizer
	Synthesizer  Synthesizer
	Capabilities Capabilities
	Locale       string
	SpeakEnabled bool
	Transcript   *chat.Transcript
	Logger       *zerolog.Logger
}

// Controller 一个界面会话的控制器。
type Controller struct {
	view   View
	asker  Asker
	rec    Recognizer
	synth  Synthesizer
	caps   Capabilities
	locale string
	logger zerolog.Logger

	transcript *chat.Transcript
	// renderMu 保证消息记录顺序与界面顺序一致
	renderMu sync.Mutex

	mu           sync.Mutex
	input        string
	speakEnabled bool
	recording    bool
	session      speechmodel.RecognitionSession
	// captureID 每次按下和松开都递增，用来识别过期的启动
	captureID uint64
}

// New 创建控制器。不支持语音输入时立即禁用麦克风控件。
func New(opts Options) (*Controller, error) {
	if opts.View == nil {
		return nil, errors.New("controller: view is required")
	}
	if opts.Asker == nil {
		return nil, errors.New("controller: asker is required")
	}

	caps := opts.Capabilities
	if opts.Recognizer == nil {
		caps.VoiceInput = false
	}
	if opts.Synthesizer == nil {
		caps.VoiceOutput = false
	}

	locale := strings.TrimSpace(opts.Locale)
	if locale == "" {
		locale = DefaultLocale
	}

	transcript := opts.Transcript
	if transcript == nil {
		transcript = chat.NewTranscript()
	}

	logger := observability.Component("controller")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	c := &Controller{
		view:         opts.View,
		asker:        opts.Asker,
		rec:          opts.Recognizer,
		synth:        opts.Synthesizer,
		caps:         caps,
		locale:       locale,
		logger:       logger,
		transcript:   transcript,
		speakEnabled: opts.SpeakEnabled,
	}

	if !caps.VoiceInput {
		c.view.SetVoiceInput(false, VoiceUnsupportedLabel)
	}
	return c, nil
}

// RenderMessage 追加一条消息到记录和界面。
func (c *Controller) RenderMessage(text string, author chat.Author) chat.Message {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	msg := c.transcript.Append(text, author)
	c.view.AppendMessage(msg)
	return msg
}

// SubmitQuestion 发送一个问题，返回服务端答案或兜底答案。
func (c *Controller) SubmitQuestion(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	return c.asker.Ask(ctx, question)
}

// HandleSend 处理一次发送。输入为空时什么也不做。
func (c *Controller) HandleSend(ctx context.Context) error {
	c.mu.Lock()
	question := strings.TrimSpace(c.input)
	if question == "" {
		c.mu.Unlock()
		return nil
	}
	c.input = ""
	c.mu.Unlock()

	// 发请求前先清空输入框
	c.view.SetInput("")
	c.RenderMessage(question, chat.AuthorUser)

	answer, err := c.SubmitQuestion(ctx, question)
	if err != nil {
		c.logger.Error().Err(err).Msg("question failed")
		c.RenderMessage(ErrorReply, chat.AuthorBot)
		return fmt.Errorf("submit question: %w", err)
	}

	c.RenderMessage(answer, chat.AuthorBot)

	if c.SpeakEnabled() && c.caps.VoiceOutput {
		if err := c.Speak(ctx, answer); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Debug().Err(err).Msg("speak answer failed")
		}
	}
	return nil
}

// StartVoiceCapture 开始按键说话。
func (c *Controller) StartVoiceCapture(ctx context.Context) error {
	if !c.caps.VoiceInput {
		return ErrVoiceInputUnsupported
	}

	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.recording = true
	// 旧会话仍可能在转写，它的结束事件不能复位新的录音状态
	c.session = nil
	c.captureID++
	id := c.captureID
	c.mu.Unlock()

	session, err := c.rec.Start(ctx, speechmodel.RecognitionOptions{
		Locale:          c.locale,
		InterimResults:  false,
		MaxAlternatives: 1,
	})
	if err != nil {
		c.mu.Lock()
		if c.captureID == id {
			c.recording = false
		}
		c.mu.Unlock()
		c.logger.Debug().Err(err).Msg("voice capture failed to start")
		return fmt.Errorf("start voice capture: %w", err)
	}

	c.mu.Lock()
	current := c.captureID == id
	if current {
		c.session = session
	}
	c.mu.Unlock()

	if !current {
		// 启动期间已经松开：立即结束采集，仍然转写已录到的内容
		session.Stop()
		go c.watch(ctx, session)
		return nil
	}

	c.view.SetRecording(true)
	go c.watch(ctx, session)
	return nil
}

// StopVoiceCapture 松开按键：结束采集并立即复位录音指示。
func (c *Controller) StopVoiceCapture() {
	c.mu.Lock()
	session := c.session
	wasRecording := c.recording
	c.recording = false
	c.captureID++
	c.mu.Unlock()

	if session != nil {
		session.Stop()
	}
	if wasRecording {
		c.view.SetRecording(false)
	}
}

// watch 消费识别事件；识别结果写入输入框，会话结束后自动发送。
func (c *Controller) watch(ctx context.Context, session speechmodel.RecognitionSession) {
	var transcript string

	for ev := range session.Events() {
		switch ev.Type {
		case speechmodel.RecognitionResult:
			transcript = ev.Transcript
			c.SetInput(transcript)
		case speechmodel.RecognitionError:
			c.logger.Debug().Err(ev.Err).Msg("voice capture error")
			c.clearRecording(session)
		case speechmodel.RecognitionEnd:
			c.clearRecording(session)
		}
	}
	c.clearRecording(session)

	if strings.TrimSpace(transcript) == "" {
		return
	}
	if err := c.HandleSend(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("send after voice capture failed")
	}
}

func (c *Controller) clearRecording(session speechmodel.RecognitionSession) {
	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return
	}
	c.session = nil
	wasRecording := c.recording
	c.recording = false
	c.mu.Unlock()

	if wasRecording {
		c.view.SetRecording(false)
	}
}

// Speak 取消正在进行的朗读，然后朗读 text。
func (c *Controller) Speak(ctx context.Context, text string) error {
	if !c.caps.VoiceOutput {
		return ErrVoiceOutputUnsupported
	}
	c.synth.Cancel()
	return c.synth.Speak(ctx, text, c.locale)
}

// SetInput 设置输入框内容。
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
	c.view.SetInput(text)
}

// UpdateInput 记录用户在界面上的输入，不回写界面。
func (c *Controller) UpdateInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetSpeakEnabled 切换朗读开关。关闭时停止当前朗读。
func (c *Controller) SetSpeakEnabled(enabled bool) {
	c.mu.Lock()
	c.speakEnabled = enabled
	c.mu.Unlock()

	if !enabled && c.caps.VoiceOutput {
		c.synth.Cancel()
	}
}

func (c *Controller) SpeakEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speakEnabled
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

func (c *Controller) Capabilities() Capabilities {
	return c.caps
}

func (c *Controller) Locale() string {
	return c.locale
}

// Transcript 返回消息记录的副本。
func (c *Controller) Transcript() []chat.Message {
	return c.transcript.Messages()
}
