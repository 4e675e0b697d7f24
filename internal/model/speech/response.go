package speech

import "time"

// ASRResponse 一次识别的最终结果，只保留最佳候选。
type ASRResponse struct {
	SessionID  string    `json:"sessionId"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	DurationMS int64     `json:"durationMs"` // 音频时长
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TTSResponse carries a fully synthesized answer ready for playback.
type TTSResponse struct {
	SessionID  string    `json:"sessionId"`
	AudioData  []byte    `json:"-"`
	Format     string    `json:"format"` // mp3 或 pcm
	SampleRate int       `json:"sampleRate,omitempty"`
	DurationMS int64     `json:"durationMs"`
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
