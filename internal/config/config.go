package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Ask    AskConfig    `envconfig:"ASK"`
	Speech SpeechConfig `envconfig:"SPEECH"`
	Voice  VoiceConfig  `envconfig:"VOICE"`
	Log    LogConfig    `envconfig:"LOG"`

	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicURL 二维码中的页面地址，为空时使用局域网地址
	PublicURL string `envconfig:"PUBLIC_URL"`
}

// AskConfig describes the remote question-answering service.
type AskConfig struct {
	URL           string        `envconfig:"URL" default:"http://127.0.0.1:5000"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"30s"`
	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"1"`
	RetryBackoff  time.Duration `envconfig:"RETRY_BACKOFF" default:"200ms"`
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	AppID          string        `envconfig:"APP_ID"`
	AccessToken    string        `envconfig:"ACCESS_TOKEN"`
	APIKey         string        `envconfig:"API_KEY"`
	ConcurrentMode bool          `envconfig:"CONCURRENT_MODE" default:"false"`
	ASREndpoint    string        `envconfig:"ASR_ENDPOINT"`
	TTSEndpoint    string        `envconfig:"TTS_ENDPOINT"`
	ASRModel       string        `envconfig:"ASR_MODEL" default:"bigmodel"`
	TTSVoice       string        `envconfig:"TTS_VOICE" default:"en_female_amy_jupiter_bigtts"`
	TTSSpeed       float32       `envconfig:"TTS_SPEED" default:"1.0"`
	TTSVolume      float32       `envconfig:"TTS_VOLUME" default:"1.0"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"30s"`
	DialRetries    int           `envconfig:"DIAL_RETRIES" default:"2"`
}

// VoiceConfig covers push-to-talk capture and playback on the controller side.
type VoiceConfig struct {
	Locale       string        `envconfig:"LOCALE" default:"en-US"`
	SpeakDefault bool          `envconfig:"SPEAK_DEFAULT" default:"false"`
	SampleRate   int           `envconfig:"SAMPLE_RATE" default:"16000"`
	VADThreshold float64       `envconfig:"VAD_THRESHOLD" default:"500"`
	VADSilenceMS int           `envconfig:"VAD_SILENCE_MS" default:"800"`
	MaxRecording time.Duration `envconfig:"MAX_RECORDING" default:"30s"`
	PlaybackRate int           `envconfig:"PLAYBACK_RATE" default:"24000"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Pretty bool   `envconfig:"PRETTY" default:"false"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Server.Addr(); err != nil {
		return err
	}

	url := strings.TrimSpace(c.Ask.URL)
	if url == "" {
		return fmt.Errorf("ASK_URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid ASK_URL value %q: must start with http:// or https://", url)
	}
	c.Ask.URL = strings.TrimRight(url, "/")

	if public := strings.TrimSpace(c.Server.PublicURL); public != "" {
		if !strings.HasPrefix(public, "http://") && !strings.HasPrefix(public, "https://") {
			return fmt.Errorf("invalid PUBLIC_URL value %q: must start with http:// or https://", public)
		}
		c.Server.PublicURL = strings.TrimRight(public, "/")
	}

	if c.Ask.RetryAttempts < 1 {
		c.Ask.RetryAttempts = 1
	}
	if c.Ask.Timeout <= 0 {
		return fmt.Errorf("invalid ASK_TIMEOUT value %s", c.Ask.Timeout)
	}

	if strings.TrimSpace(c.Voice.Locale) == "" {
		return fmt.Errorf("VOICE_LOCALE must not be empty")
	}
	if c.Voice.SampleRate <= 0 {
		return fmt.Errorf("invalid VOICE_SAMPLE_RATE value %d", c.Voice.SampleRate)
	}

	return nil
}

// Addr 解析服务器监听地址。
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// Enabled 表示是否提供了必需的语音凭证。
func (c SpeechConfig) Enabled() bool {
	return strings.TrimSpace(c.AppID) != "" && c.token() != ""
}

func (c SpeechConfig) token() string {
	if token := strings.TrimSpace(c.AccessToken); token != "" {
		return token
	}
	return strings.TrimSpace(c.APIKey)
}

// Model 转换为语音服务使用的配置。
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AppID:          strings.TrimSpace(c.AppID),
		AccessToken:    c.token(),
		APIKey:         strings.TrimSpace(c.APIKey),
		ConcurrentMode: c.ConcurrentMode,
		ASREndpoint:    strings.TrimSpace(c.ASREndpoint),
		TTSEndpoint:    strings.TrimSpace(c.TTSEndpoint),
		ASRModel:       c.ASRModel,
		TTSVoice:       strings.TrimSpace(c.TTSVoice),
		TTSSpeed:       c.TTSSpeed,
		TTSVolume:      c.TTSVolume,
		Timeout:        c.Timeout,
		DialRetries:    c.DialRetries,
	}
}

// SilenceFrames converts the configured silence window into 20ms VAD frames.
func (c VoiceConfig) SilenceFrames() int {
	frames := c.VADSilenceMS / 20
	if frames < 1 {
		return 1
	}
	return frames
}
