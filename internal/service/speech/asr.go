package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
)

const (
	defaultASREndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

	asrResourceDuration   = "volc.bigasr.sauc.duration"
	asrResourceConcurrent = "volc.bigasr.sauc.concurrent"

	asrChunkInterval = 200 * time.Millisecond
)

// ErrNoAudio 没有可识别的音频。
var ErrNoAudio = errors.New("no audio data to transcribe")

// ASRClient 火山引擎大模型语音识别客户端。
type ASRClient struct {
	config   *speechmodel.SpeechConfig
	endpoint string
	dialer   *wsDialer
	logger   zerolog.Logger
	// pace 控制音频分包的发送间隔，测试里置 0
	pace time.Duration
}

type asrParams struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text     string `json:"text"`
	Definite bool   `json:"definite"`
}

type asrReply struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

// NewASRClient 创建识别客户端。
func NewASRClient(cfg *speechmodel.SpeechConfig, logger zerolog.Logger) *ASRClient {
	endpoint := defaultASREndpoint
	if cfg != nil && strings.TrimSpace(cfg.ASREndpoint) != "" {
		endpoint = strings.TrimSpace(cfg.ASREndpoint)
	}
	return &ASRClient{
		config:   cfg,
		endpoint: endpoint,
		dialer:   newWSDialer(cfg, logger),
		logger:   logger,
		pace:     asrChunkInterval,
	}
}

// Transcribe 上传整段音频并返回最终识别结果。
func (c *ASRClient) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	creds, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}
	if req == nil || req.AudioData == nil {
		return nil, ErrNoAudio
	}

	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resource := asrResourceDuration
	if c.config.ConcurrentMode {
		resource = asrResourceConcurrent
	}

	conn, err := c.dialer.dial(ctx, c.endpoint, creds.header(resource, sessionID))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		// 解除阻塞中的 ReadMessage
		conn.Close()
	}()

	params, err := json.Marshal(c.buildParams(req, sessionID))
	if err != nil {
		return nil, fmt.Errorf("marshal asr params: %w", err)
	}
	first, err := newRequestFrame(params, CompressGzip)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, first); err != nil {
		return nil, fmt.Errorf("send asr params: %w", err)
	}

	type result struct {
		resp *speechmodel.ASRResponse
		err  error
	}
	recvCh := make(chan result, 1)
	go func() {
		resp, err := c.receive(conn, sessionID)
		recvCh <- result{resp, err}
	}()

	sendCh := make(chan error, 1)
	go func() {
		sendCh <- c.sendAudio(ctx, conn, audio)
	}()

	for {
		select {
		case err := <-sendCh:
			if err != nil {
				return nil, fmt.Errorf("send audio: %w", err)
			}
			sendCh = nil
		case r := <-recvCh:
			if r.err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return r.resp, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *ASRClient) buildParams(req *speechmodel.ASRRequest, uid string) *asrParams {
	p := &asrParams{}
	p.User.UID = uid

	p.Audio.Format = req.Format
	if p.Audio.Format == "" {
		p.Audio.Format = "pcm"
	}
	p.Audio.Language = req.Language
	if p.Audio.Language == "" {
		p.Audio.Language = "en-US"
	}
	p.Audio.Codec = "raw"
	p.Audio.Rate = req.SampleRate
	if p.Audio.Rate <= 0 {
		p.Audio.Rate = 16000
	}
	p.Audio.Bits = 16
	p.Audio.Channel = 1

	p.Request.ModelName = c.config.ASRModel
	if p.Request.ModelName == "" {
		p.Request.ModelName = "bigmodel"
	}
	p.Request.EnableITN = true
	p.Request.EnablePunc = true
	p.Request.ShowUtterances = true
	p.Request.ResultType = "full"
	p.Request.EndWindowSize = 800
	return p
}

// sendAudio 按 200ms 一包发送，sequence 从 2 开始（首帧占 1）。
func (c *ASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	const chunkSize = 6400 // 16kHz 16bit mono 200ms

	seq := int32(2)
	for offset := 0; offset < len(audio); offset += chunkSize {
		end := min(offset+chunkSize, len(audio))
		last := end == len(audio)

		frame, err := newAudioFrame(audio[offset:end], seq, last, CompressGzip)
		if err != nil {
			return err
		}
		if err := writeFrame(conn, frame); err != nil {
			return err
		}
		if last {
			return nil
		}
		seq++

		if c.pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.pace):
			}
		}
	}
	return nil
}

func (c *ASRClient) receive(conn *websocket.Conn, sessionID string) (*speechmodel.ASRResponse, error) {
	var (
		text     string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read asr reply: %w", err)
		}
		frame, err := ReadFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode asr frame: %w", err)
		}

		switch frame.Type {
		case FrameError:
			payload, _ := frame.DecodedPayload()
			return nil, fmt.Errorf("asr error %d: %s", frame.ErrorCode, string(payload))

		case FrameFullServerReply:
			payload, err := frame.DecodedPayload()
			if err != nil {
				return nil, fmt.Errorf("decompress asr reply: %w", err)
			}

			var reply asrReply
			if err := json.Unmarshal(payload, &reply); err != nil {
				c.logger.Warn().Err(err).Msg("skip undecodable asr reply")
				continue
			}
			if reply.Code != 0 && reply.Code != 20000000 {
				return nil, fmt.Errorf("asr api error %d: %s", reply.Code, reply.Message)
			}

			if candidate := reply.Result.Text; candidate != "" {
				text = candidate
			} else if joined := joinUtterances(reply.Result.Utterances); joined != "" {
				text = joined
			}
			if reply.AudioInfo.Duration > 0 {
				duration = reply.AudioInfo.Duration
			}

			if frame.IsLast() || reply.Sequence < 0 {
				return &speechmodel.ASRResponse{
					SessionID:  sessionID,
					Text:       strings.TrimSpace(text),
					Confidence: confidenceFor(text),
					DurationMS: duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now().UTC(),
				}, nil
			}
		}
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func confidenceFor(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}
