package speech

import (
	"encoding/binary"
	"testing"
)

func pcmFrames(amplitude int16, frames, frameSize int) []byte {
	out := make([]byte, frames*frameSize*2)
	for i := 0; i < frames*frameSize; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestCalculateRMS(t *testing.T) {
	if got := CalculateRMS(nil); got != 0 {
		t.Fatalf("empty samples: got %f", got)
	}
	if got := CalculateRMS([]int16{1000, -1000, 1000, -1000}); got != 1000 {
		t.Fatalf("square wave: got %f", got)
	}
}

func TestVADDetectsEndOfSpeech(t *testing.T) {
	vad := NewVAD(VADConfig{EnergyThreshold: 500, SilenceFrames: 3, FrameSize: 160})

	if vad.Feed(pcmFrames(0, 10, 160)) {
		t.Fatal("leading silence must not end the utterance")
	}
	if vad.HeardSpeech() {
		t.Fatal("no speech yet")
	}
	if vad.Feed(pcmFrames(3000, 5, 160)) {
		t.Fatal("speech must not end the utterance")
	}
	if !vad.HeardSpeech() {
		t.Fatal("expected speech to be heard")
	}
	if vad.Feed(pcmFrames(0, 2, 160)) {
		t.Fatal("two silent frames are below the window")
	}
	if !vad.Feed(pcmFrames(0, 1, 160)) {
		t.Fatal("third silent frame should end the utterance")
	}
}

func TestVADHandlesPartialFrames(t *testing.T) {
	vad := NewVAD(VADConfig{EnergyThreshold: 500, SilenceFrames: 1, FrameSize: 160})
	speech := pcmFrames(3000, 1, 160)

	vad.Feed(speech[:100])
	if vad.HeardSpeech() {
		t.Fatal("partial frame must wait for more data")
	}
	vad.Feed(speech[100:])
	if !vad.HeardSpeech() {
		t.Fatal("completed frame should be processed")
	}
}
