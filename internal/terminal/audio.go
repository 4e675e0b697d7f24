//go:build voice

package terminal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
)

const framesPerBuffer = 320 // 16kHz 下 20ms

// audioDevices 本地麦克风与扬声器
type audioDevices struct {
	source *micSource
	sink   *pcmSink
}

func openAudio(sampleRate int) (*audioDevices, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to get input device: %w", err)
	}
	if _, err := portaudio.DefaultOutputDevice(); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to get output device: %w", err)
	}
	return &audioDevices{
		source: &micSource{sampleRate: sampleRate},
		sink:   &pcmSink{},
	}, nil
}

func (d *audioDevices) Close() {
	d.source.Stop()
	d.sink.Stop()
	portaudio.Terminate()
}

// micSource 从默认输入设备采集 16bit 单声道 PCM。
type micSource struct {
	sampleRate int

	mu   sync.Mutex
	stop chan struct{}
}

var _ speechService.AudioSource = (*micSource)(nil)

func (m *micSource) Start(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return nil, speechService.ErrSourceBusy
	}

	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	stop := make(chan struct{})
	m.stop = stop
	chunks := make(chan []byte, 64)

	go func() {
		defer close(chunks)
		defer stream.Close()
		defer stream.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			default:
			}

			if err := stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
				return
			}
			chunk := make([]byte, len(buf)*2)
			for i, sample := range buf {
				binary.LittleEndian.PutUint16(chunk[i*2:], uint16(sample))
			}

			select {
			case chunks <- chunk:
			case <-stop:
				return
			}
		}
	}()
	return chunks, nil
}

func (m *micSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *micSource) Format() string  { return "pcm" }
func (m *micSource) SampleRate() int { return m.sampleRate }

// pcmSink 把 16bit 单声道 PCM 写到默认输出设备。
type pcmSink struct {
	mu   sync.Mutex
	stop chan struct{}
}

var _ speechService.AudioSink = (*pcmSink)(nil)

func (p *pcmSink) Play(ctx context.Context, audio []byte, format string, sampleRate int) error {
	if format != "pcm" {
		return fmt.Errorf("unsupported playback format %q", format)
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}

	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	out := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("failed to open playback stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	defer stream.Stop()

	samples := len(audio) / 2
	for offset := 0; offset < samples; offset += len(out) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return context.Canceled
		default:
		}

		for i := range out {
			out[i] = 0
			if idx := offset + i; idx < samples {
				out[i] = int16(binary.LittleEndian.Uint16(audio[idx*2:]))
			}
		}
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("playback: %w", err)
		}
	}
	return nil
}

func (p *pcmSink) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}
