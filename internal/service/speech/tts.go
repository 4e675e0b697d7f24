package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
)

const (
	defaultTTSEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	defaultTTSVoice    = "en_female_amy_jupiter_bigtts"
	defaultTTSRate     = 24000

	ttsResourceLegacy = "volc.service_type.10029"
	ttsResourceClone  = "volc.megatts.default"
	ttsResourceSeed   = "seed-tts-2.0"
)

var (
	ErrEmptyText  = errors.New("text to synthesize is empty")
	ErrEmptyAudio = errors.New("synthesized audio is empty")

	errResourceMismatch = errors.New("resource mismatched with speaker")
)

// 大模型音色名里包含这些片段时优先走 seed 资源
var seedVoiceHints = []string{
	"bigtts", "seed", "megatts", "uranus", "venus", "jupiter",
	"saturn", "neptune", "mercury", "pluto", "mars",
}

// 前端可以传短名字
var voiceAliases = map[string]string{
	"en_default": defaultTTSVoice,
	"en_female":  defaultTTSVoice,
	"en_male":    "en_male_adam_mars_bigtts",
	"zh_female":  "zh_female_vv_uranus_bigtts",
}

// TTSClient 火山引擎单向流式语音合成客户端。
type TTSClient struct {
	config   *speechmodel.SpeechConfig
	endpoint string
	dialer   *wsDialer
	logger   zerolog.Logger
}

type ttsParams struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

type ttsReply struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition"`
}

// NewTTSClient 创建合成客户端。
func NewTTSClient(cfg *speechmodel.SpeechConfig, logger zerolog.Logger) *TTSClient {
	endpoint := defaultTTSEndpoint
	if cfg != nil && strings.TrimSpace(cfg.TTSEndpoint) != "" {
		endpoint = strings.TrimSpace(cfg.TTSEndpoint)
	}
	return &TTSClient{
		config:   cfg,
		endpoint: endpoint,
		dialer:   newWSDialer(cfg, logger),
		logger:   logger,
	}
}

// Synthesize 合成整段文本。音色与资源不匹配时依次尝试候选组合。
func (c *TTSClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	creds, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	format := normalizeTTSFormat(req.Format)
	speakers := speakerCandidates(req.Voice, c.config.TTSVoice)

	var lastErr error
	for _, speaker := range speakers {
		for _, resource := range resourceCandidates(speaker) {
			resp, err := c.synthesizeOnce(ctx, creds, req, speaker, resource, format)
			if err == nil {
				return resp, nil
			}
			if !errors.Is(err, errResourceMismatch) {
				return nil, err
			}
			c.logger.Debug().Str("voice", speaker).Str("resource", resource).Msg("tts resource mismatch, trying next")
			lastErr = err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no compatible tts resource for voices %v", speakers)
	}
	return nil, lastErr
}

func (c *TTSClient) synthesizeOnce(
	ctx context.Context,
	creds credentials,
	req *speechmodel.TTSRequest,
	speaker, resource, format string,
) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()
	conn, err := c.dialer.dial(ctx, c.endpoint, creds.header(resource, connectID))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	params, uid := c.buildParams(req, speaker, format)
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal tts params: %w", err)
	}
	first, err := newRequestFrame(payload, CompressNone)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, first); err != nil {
		return nil, fmt.Errorf("send tts params: %w", err)
	}

	resp, err := c.receive(conn, format)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	resp.SessionID = strings.TrimSpace(req.SessionID)
	if resp.SessionID == "" {
		resp.SessionID = uid
	}
	if resp.RequestID == "" {
		resp.RequestID = connectID
	}
	resp.SampleRate = params.ReqParams.AudioParams.SampleRate
	return resp, nil
}

func (c *TTSClient) receive(conn *websocket.Conn, format string) (*speechmodel.TTSResponse, error) {
	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read tts reply: %w", err)
		}
		frame, err := ReadFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode tts frame: %w", err)
		}

		switch frame.Type {
		case FrameError:
			payload, _ := frame.DecodedPayload()
			return nil, classifyTTSError(fmt.Errorf("tts error %d: %s", frame.ErrorCode, string(payload)))

		case FrameAudioOnlyReply:
			chunk, err := frame.DecodedPayload()
			if err != nil {
				return nil, fmt.Errorf("decompress tts audio: %w", err)
			}
			audio.Write(chunk)

		case FrameFullServerReply:
			payload, err := frame.DecodedPayload()
			if err != nil {
				return nil, fmt.Errorf("decompress tts reply: %w", err)
			}

			var reply ttsReply
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &reply); err != nil {
					c.logger.Warn().Err(err).Msg("skip undecodable tts reply")
				} else {
					if reply.Code != 0 && reply.Code != 3000 {
						return nil, classifyTTSError(fmt.Errorf("tts api error %d: %s", reply.Code, reply.Message))
					}
					if reply.ReqID != "" {
						reqID = reply.ReqID
					}
					if ms, err := strconv.ParseInt(reply.Addition.Duration, 10, 64); err == nil {
						duration = ms
					}
					if reply.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(reply.Data)
						if err != nil {
							return nil, fmt.Errorf("decode base64 audio: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finished := (frame.HasEvent() && frame.Event == EventSessionFinished) ||
				frame.IsLast() || reply.Sequence < 0
			if !finished {
				continue
			}
			if audio.Len() == 0 {
				return nil, ErrEmptyAudio
			}
			return &speechmodel.TTSResponse{
				AudioData:  audio.Bytes(),
				DurationMS: duration,
				Format:     format,
				RequestID:  reqID,
				CreatedAt:  time.Now().UTC(),
			}, nil

		default:
			c.logger.Debug().Uint8("type", uint8(frame.Type)).Msg("ignore unexpected tts frame")
		}
	}
}

func (c *TTSClient) buildParams(req *speechmodel.TTSRequest, speaker, format string) (*ttsParams, string) {
	p := &ttsParams{}

	uid := strings.TrimSpace(req.SessionID)
	if uid == "" {
		uid = uuid.NewString()
	}
	p.User.UID = uid

	p.ReqParams.Speaker = speaker
	p.ReqParams.Text = req.Text
	p.ReqParams.Language = strings.TrimSpace(req.Language)
	p.ReqParams.AudioParams.Format = format
	p.ReqParams.AudioParams.SampleRate = req.SampleRate
	if p.ReqParams.AudioParams.SampleRate <= 0 {
		p.ReqParams.AudioParams.SampleRate = defaultTTSRate
	}

	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1.0 {
		p.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1.0 {
		p.ReqParams.AudioParams.VolumeRatio = volume
	}

	return p, uid
}

// normalizeTTSFormat 服务端不支持 wav，统一降级为 mp3。
func normalizeTTSFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "pcm":
		return "pcm"
	case "ogg_opus":
		return "ogg_opus"
	default:
		return "mp3"
	}
}

func resourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{ttsResourceClone}
	}

	lower := strings.ToLower(voice)
	for _, hint := range seedVoiceHints {
		if strings.Contains(lower, hint) {
			return []string{ttsResourceSeed, ttsResourceLegacy}
		}
	}
	return []string{ttsResourceLegacy, ttsResourceSeed}
}

func speakerCandidates(requested, configured string) []string {
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if mapped, ok := voiceAliases[strings.ToLower(v)]; ok {
			v = mapped
		}
		for _, existing := range out {
			if strings.EqualFold(existing, v) {
				return
			}
		}
		out = append(out, v)
	}

	add(requested)
	add(configured)
	add(defaultTTSVoice)
	return out
}

func classifyTTSError(err error) error {
	if strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource") {
		return fmt.Errorf("%w: %v", errResourceMismatch, err)
	}
	return err
}
