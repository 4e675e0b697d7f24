package terminal

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/webhelpdesk/helpdesk/internal/controller"
	"github.com/webhelpdesk/helpdesk/internal/observability"
	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
)

// SpeechBackend 终端使用的识别与合成能力。
type SpeechBackend interface {
	speechService.Transcriber
	speechService.Synthesizer
	Available() bool
}

// Options configures the terminal chat.
type Options struct {
	Asker        controller.Asker
	Speech       SpeechBackend // nil 表示没有语音能力
	Locale       string
	SpeakDefault bool
	SampleRate   int
	PlaybackRate int
	VAD          speechService.VADConfig
	MaxRecording time.Duration
	TTSVoice     string
	Logger       *zerolog.Logger
}

// Session 一个终端会话：控制器、界面模型和本地音频设备。
type Session struct {
	ctrl   *controller.Controller
	model  *Model
	view   *channelView
	audio  *audioDevices
	logger zerolog.Logger
}

// NewSession 探测语音能力并创建控制器。
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	logger := observability.Component("terminal")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = observability.WithSession(logger, "")

	var (
		rec   controller.Recognizer
		synth controller.Synthesizer
		audio *audioDevices
	)
	if opts.Speech != nil && opts.Speech.Available() {
		devices, err := openAudio(opts.SampleRate)
		if err != nil {
			logger.Warn().Err(err).Msg("local audio unavailable, voice disabled")
		} else {
			audio = devices
			rec = speechService.NewRecognizer(speechService.RecognizerOptions{
				Transcriber:  opts.Speech,
				Source:       devices.source,
				VAD:          opts.VAD,
				MaxRecording: opts.MaxRecording,
				Logger:       &logger,
			})
			synth = speechService.NewSpeaker(speechService.SpeakerOptions{
				Synthesizer: opts.Speech,
				Sink:        devices.sink,
				Voice:       opts.TTSVoice,
				Format:      "pcm",
				SampleRate:  opts.PlaybackRate,
				Logger:      &logger,
			})
		}
	}

	view := newChannelView()
	ctrl, err := controller.New(controller.Options{
		View:         view,
		Asker:        opts.Asker,
		Recognizer:   rec,
		Synthesizer:  synth,
		Capabilities: controller.Probe(rec, synth),
		Locale:       opts.Locale,
		SpeakEnabled: opts.SpeakDefault,
		Logger:       &logger,
	})
	if err != nil {
		if audio != nil {
			audio.Close()
		}
		return nil, fmt.Errorf("create controller: %w", err)
	}

	return &Session{
		ctrl:   ctrl,
		model:  newModel(ctx, ctrl, view),
		view:   view,
		audio:  audio,
		logger: logger,
	}, nil
}

// Controller exposes the session controller.
func (s *Session) Controller() *controller.Controller {
	return s.ctrl
}

// Run 运行界面直到用户退出或 ctx 取消。
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	observability.SessionOpened()
	defer observability.SessionClosed()

	program := tea.NewProgram(s.model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

// Close 停止录音和朗读并释放音频设备。
func (s *Session) Close() {
	s.ctrl.StopVoiceCapture()
	if caps := s.ctrl.Capabilities(); caps.VoiceOutput {
		s.ctrl.SetSpeakEnabled(false)
	}
	s.view.close()
	if s.audio != nil {
		s.audio.Close()
		s.audio = nil
	}
}
