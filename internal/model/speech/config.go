package speech

import "time"

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	// Volcengine 凭证
	AppID          string `json:"appId"`
	AccessToken    string `json:"accessToken"`
	APIKey         string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	ConcurrentMode bool   `json:"concurrentMode"`   // ASR并发版资源（false为小时版）

	// 端点，留空使用官方地址
	ASREndpoint string `json:"asrEndpoint,omitempty"`
	TTSEndpoint string `json:"ttsEndpoint,omitempty"`

	// ASR 配置
	ASRModel string `json:"asrModel"`

	// TTS 配置
	TTSVoice  string  `json:"ttsVoice"`
	TTSSpeed  float32 `json:"ttsSpeed"`
	TTSVolume float32 `json:"ttsVolume"`

	// 通用配置
	Timeout     time.Duration `json:"timeout"`
	DialRetries int           `json:"dialRetries"`
}
