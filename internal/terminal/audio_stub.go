//go:build !voice

package terminal

import (
	"errors"

	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
)

var errVoiceNotCompiled = errors.New("voice features not compiled in - build with -tags voice")

// audioDevices 本地麦克风与扬声器 (stub version)
type audioDevices struct {
	source speechService.AudioSource
	sink   speechService.AudioSink
}

func openAudio(int) (*audioDevices, error) {
	return nil, errVoiceNotCompiled
}

func (d *audioDevices) Close() {}
