package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	"github.com/webhelpdesk/helpdesk/internal/observability"
)

var (
	// ErrNoSpeech 录音结束但没有识别出文字。
	ErrNoSpeech = errors.New("no speech detected")
	// ErrUnsupportedOptions 只支持最终结果和单一候选。
	ErrUnsupportedOptions = errors.New("interim results and multiple alternatives are not supported")
)

// RecognizerOptions configures Recognizer.
type RecognizerOptions struct {
	Transcriber  Transcriber
	Source       AudioSource
	VAD          VADConfig
	MaxRecording time.Duration
	Logger       *zerolog.Logger
}

// Recognizer 按键说话：采集音频，松开、静音或超时后整段识别。
type Recognizer struct {
	asr          Transcriber
	source       AudioSource
	vad          VADConfig
	maxRecording time.Duration
	logger       zerolog.Logger
}

// NewRecognizer 创建识别器。
func NewRecognizer(opts RecognizerOptions) *Recognizer {
	logger := observability.Component("recognizer")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	maxRecording := opts.MaxRecording
	if maxRecording <= 0 {
		maxRecording = 30 * time.Second
	}
	return &Recognizer{
		asr:          opts.Transcriber,
		source:       opts.Source,
		vad:          opts.VAD,
		maxRecording: maxRecording,
		logger:       logger,
	}
}

// Available 是否具备识别能力。
func (r *Recognizer) Available() bool {
	if r == nil || r.asr == nil || r.source == nil {
		return false
	}
	if probe, ok := r.asr.(interface{ Available() bool }); ok {
		return probe.Available()
	}
	return true
}

// Start 打开音频源并返回识别会话。
func (r *Recognizer) Start(ctx context.Context, opts speechmodel.RecognitionOptions) (speechmodel.RecognitionSession, error) {
	if !r.Available() {
		return nil, fmt.Errorf("speech recognition unavailable")
	}
	if opts.InterimResults || opts.MaxAlternatives > 1 {
		return nil, ErrUnsupportedOptions
	}

	chunks, err := r.source.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start audio source: %w", err)
	}

	s := &recognitionSession{
		id:     uuid.NewString(),
		events: make(chan speechmodel.RecognitionEvent, 4),
		stopCh: make(chan struct{}),
	}
	go r.run(ctx, s, chunks, opts.Locale)
	return s, nil
}

func (r *Recognizer) run(ctx context.Context, s *recognitionSession, chunks <-chan []byte, locale string) {
	defer close(s.events)
	logger := r.logger.With().Str("capture_id", s.id).Logger()

	var vad *VAD
	if r.source.Format() == "pcm" {
		vad = NewVAD(r.vad)
	}

	timer := time.NewTimer(r.maxRecording)
	defer timer.Stop()

	var audio bytes.Buffer
	reason := "stopped"
capture:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				break capture
			}
			audio.Write(chunk)
			if vad != nil && vad.Feed(chunk) {
				reason = "silence"
				break capture
			}
		case <-s.stopCh:
			break capture
		case <-timer.C:
			reason = "max_duration"
			break capture
		case <-ctx.Done():
			r.source.Stop()
			s.emit(speechmodel.RecognitionEvent{Type: speechmodel.RecognitionError, Err: ctx.Err()})
			s.emit(speechmodel.RecognitionEvent{Type: speechmodel.RecognitionEnd})
			return
		}
	}

	r.source.Stop()
	// 收掉停止前已经缓冲的分片
	if chunks != nil {
		for chunk := range chunks {
			audio.Write(chunk)
		}
	}
	logger.Debug().Str("reason", reason).Int("bytes", audio.Len()).Msg("capture finished")

	text, err := r.transcribe(ctx, s.id, audio.Bytes(), locale)
	switch {
	case err != nil:
		if errors.Is(err, ErrNoSpeech) {
			observability.RecordVoiceCapture(observability.OutcomeNoSpeech)
		} else {
			observability.RecordVoiceCapture(observability.OutcomeError)
		}
		s.emit(speechmodel.RecognitionEvent{Type: speechmodel.RecognitionError, Err: err})
	default:
		observability.RecordVoiceCapture(observability.OutcomeTranscript)
		s.emit(speechmodel.RecognitionEvent{Type: speechmodel.RecognitionResult, Transcript: text})
	}
	s.emit(speechmodel.RecognitionEvent{Type: speechmodel.RecognitionEnd})
}

func (r *Recognizer) transcribe(ctx context.Context, id string, audio []byte, locale string) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}

	resp, err := r.asr.TranscribeAudio(ctx, &speechmodel.ASRRequest{
		SessionID:  id,
		AudioData:  bytes.NewReader(audio),
		Format:     r.source.Format(),
		Language:   locale,
		SampleRate: r.source.SampleRate(),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

type recognitionSession struct {
	id     string
	events chan speechmodel.RecognitionEvent
	stopCh chan struct{}
	once   sync.Once
}

func (s *recognitionSession) Events() <-chan speechmodel.RecognitionEvent {
	return s.events
}

// Stop 结束采集，已录到的音频仍会被识别。可重复调用。
func (s *recognitionSession) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *recognitionSession) emit(ev speechmodel.RecognitionEvent) {
	// 容量足够容纳一次会话的全部事件
	s.events <- ev
}
