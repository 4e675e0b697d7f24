package speech

import (
	"encoding/binary"
	"math"
)

// VADConfig 基于能量的端点检测参数。
type VADConfig struct {
	EnergyThreshold float64 // RMS 阈值
	SilenceFrames   int     // 连续静音帧数达到该值视为说完
	FrameSize       int     // 每帧采样数，16kHz 下 320 即 20ms
}

// DefaultVADConfig 16kHz 单声道的默认参数。
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold: 500,
		SilenceFrames:   40,
		FrameSize:       320,
	}
}

// VAD 处理 16bit little-endian PCM，检测一段话的结束。
type VAD struct {
	cfg      VADConfig
	pending  []byte
	silence  int
	speaking bool
	heard    bool
}

// NewVAD creates a detector; zero fields fall back to defaults.
func NewVAD(cfg VADConfig) *VAD {
	def := DefaultVADConfig()
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = def.EnergyThreshold
	}
	if cfg.SilenceFrames <= 0 {
		cfg.SilenceFrames = def.SilenceFrames
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = def.FrameSize
	}
	return &VAD{cfg: cfg}
}

// Feed 追加 PCM 数据，返回是否检测到说话结束。说话开始前的静音不计数。
func (v *VAD) Feed(pcm []byte) bool {
	v.pending = append(v.pending, pcm...)
	frameBytes := v.cfg.FrameSize * 2

	ended := false
	for len(v.pending) >= frameBytes {
		if v.processFrame(decodeSamples(v.pending[:frameBytes])) {
			ended = true
		}
		v.pending = v.pending[frameBytes:]
	}
	return ended
}

// HeardSpeech 是否出现过语音帧。
func (v *VAD) HeardSpeech() bool {
	return v.heard
}

func (v *VAD) processFrame(samples []int16) bool {
	if CalculateRMS(samples) > v.cfg.EnergyThreshold {
		v.silence = 0
		v.speaking = true
		v.heard = true
		return false
	}

	if !v.speaking {
		return false
	}
	v.silence++
	if v.silence >= v.cfg.SilenceFrames {
		v.speaking = false
		v.silence = 0
		return true
	}
	return false
}

// CalculateRMS 计算采样的均方根能量。
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func decodeSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
