package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	"github.com/webhelpdesk/helpdesk/internal/observability"
)

// AudioSink 播放合成好的音频。Stop 立即打断当前播放。
type AudioSink interface {
	Play(ctx context.Context, audio []byte, format string, sampleRate int) error
	Stop()
}

// SpeakerOptions configures Speaker.
type SpeakerOptions struct {
	Synthesizer Synthesizer
	Sink        AudioSink
	Voice       string
	Format      string // mp3 for browsers, pcm for local playback
	SampleRate  int
	Logger      *zerolog.Logger
}

// Speaker 朗读文本，新的朗读会取消正在进行的那一次。
type Speaker struct {
	tts        Synthesizer
	sink       AudioSink
	voice      string
	format     string
	sampleRate int
	logger     zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewSpeaker 创建朗读器。
func NewSpeaker(opts SpeakerOptions) *Speaker {
	logger := observability.Component("speaker")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	format := opts.Format
	if format == "" {
		format = "mp3"
	}
	return &Speaker{
		tts:        opts.Synthesizer,
		sink:       opts.Sink,
		voice:      opts.Voice,
		format:     format,
		sampleRate: opts.SampleRate,
		logger:     logger,
	}
}

// Available 是否具备朗读能力。
func (s *Speaker) Available() bool {
	if s == nil || s.tts == nil || s.sink == nil {
		return false
	}
	if probe, ok := s.tts.(interface{ Available() bool }); ok {
		return probe.Available()
	}
	return true
}

// Cancel 取消进行中的合成与播放。
func (s *Speaker) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Stop()
	}
}

// Speak 合成并播放 text，阻塞到播放结束或被取消。
func (s *Speaker) Speak(ctx context.Context, text, locale string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if s.tts == nil || s.sink == nil {
		return errors.New("speech output unavailable")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	resp, err := s.tts.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		Text:       text,
		Voice:      s.voice,
		Format:     s.format,
		Language:   locale,
		SampleRate: s.sampleRate,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug().Int("bytes", len(resp.AudioData)).Str("format", resp.Format).Msg("playing synthesized speech")
	return s.sink.Play(ctx, resp.AudioData, resp.Format, resp.SampleRate)
}
