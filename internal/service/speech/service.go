package speech

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	"github.com/webhelpdesk/helpdesk/internal/observability"
)

// Transcriber 语音转文字
type Transcriber interface {
	TranscribeAudio(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error)
}

// Synthesizer 文字转语音
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
}

// Service 语音服务，封装识别与合成两个客户端。
type Service struct {
	config *speechmodel.SpeechConfig
	asr    *ASRClient
	tts    *TTSClient
	logger zerolog.Logger
}

// NewService 创建语音服务实例
func NewService(cfg *speechmodel.SpeechConfig) *Service {
	logger := observability.Component("speech")
	return &Service{
		config: cfg,
		asr:    NewASRClient(cfg, logger),
		tts:    NewTTSClient(cfg, logger),
		logger: logger,
	}
}

// Available 凭证齐全时返回 true。
func (s *Service) Available() bool {
	if s == nil {
		return false
	}
	_, err := resolveCredentials(s.config)
	return err == nil
}

// TranscribeAudio 语音转文字
func (s *Service) TranscribeAudio(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	start := time.Now()
	resp, err := s.asr.Transcribe(ctx, req)
	observability.RecordRecognition(time.Since(start))
	if err != nil {
		s.logger.Debug().Err(err).Str("session_id", req.SessionID).Msg("transcription failed")
		return nil, err
	}
	return resp, nil
}

// SynthesizeSpeech 文字转语音
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	start := time.Now()
	resp, err := s.tts.Synthesize(ctx, req)
	if err != nil {
		observability.RecordSynthesis(observability.StatusError, time.Since(start))
		s.logger.Debug().Err(err).Str("session_id", req.SessionID).Msg("synthesis failed")
		return nil, err
	}
	observability.RecordSynthesis(observability.StatusSuccess, time.Since(start))
	return resp, nil
}

// TranscribeBuffer 语音转文字（使用字节数组）
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string, sampleRate int) (*speechmodel.ASRResponse, error) {
	return s.TranscribeAudio(ctx, &speechmodel.ASRRequest{
		SessionID:  sessionID,
		AudioData:  bytes.NewReader(audio),
		Format:     format,
		Language:   language,
		SampleRate: sampleRate,
	})
}

// SynthesizeToBuffer 文字转语音（返回字节数组）
func (s *Service) SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speechmodel.TTSResponse, error) {
	return s.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     voice,
		Language:  language,
	})
}
