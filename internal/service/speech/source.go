package speech

import (
	"context"
	"errors"
	"sync"
)

// ErrSourceBusy 音频源已在采集中。
var ErrSourceBusy = errors.New("audio source is already capturing")

// AudioSource 麦克风一类的音频输入。Stop 结束采集并关闭 Start 返回的通道。
type AudioSource interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop()
	Format() string
	SampleRate() int
}

// ChunkSource 由外部推送音频分片，浏览器上传的音频走这里。
type ChunkSource struct {
	format     string
	sampleRate int

	mu sync.Mutex
	ch chan []byte
}

// NewChunkSource creates a push-fed source.
func NewChunkSource(format string, sampleRate int) *ChunkSource {
	if format == "" {
		format = "pcm"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &ChunkSource{format: format, sampleRate: sampleRate}
}

func (s *ChunkSource) Start(context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		return nil, ErrSourceBusy
	}
	s.ch = make(chan []byte, 64)
	return s.ch, nil
}

// Push 投递一个分片；未在采集或缓冲已满时丢弃并返回 false。
func (s *ChunkSource) Push(chunk []byte) bool {
	if len(chunk) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch == nil {
		return false
	}
	data := make([]byte, len(chunk))
	copy(data, chunk)

	select {
	case s.ch <- data:
		return true
	default:
		return false
	}
}

func (s *ChunkSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
}

// Capturing 是否正在采集。
func (s *ChunkSource) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch != nil
}

func (s *ChunkSource) Format() string  { return s.format }
func (s *ChunkSource) SampleRate() int { return s.sampleRate }
