package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/webhelpdesk/helpdesk/internal/config"
	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	"github.com/webhelpdesk/helpdesk/internal/observability"
	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
)

var errSpeechDisabled = errors.New("speech service is not configured: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")

type speechFlags struct {
	format     string
	language   string
	voice      string
	output     string
	sampleRate int
	timeout    time.Duration
}

// NewSpeechCommand 手动调试语音识别与合成。
func NewSpeechCommand() *cobra.Command {
	flags := &speechFlags{}

	speechCmd := &cobra.Command{
		Use:   "speech",
		Short: "Exercise the speech service",
	}
	speechCmd.PersistentFlags().StringVar(&flags.language, "lang", "", "Language code, defaults to VOICE_LOCALE")
	speechCmd.PersistentFlags().StringVar(&flags.format, "format", "", "Audio format (asr: input, tts: output)")
	speechCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 45*time.Second, "Request timeout")

	asrCmd := &cobra.Command{
		Use:   "asr <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, svc, err := speechSetup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			return runASR(ctx, cmd, svc, cfg, flags, args[0])
		},
	}
	asrCmd.Flags().IntVar(&flags.sampleRate, "rate", 16000, "Sample rate of the input audio")

	ttsCmd := &cobra.Command{
		Use:   "tts <text>",
		Short: "Synthesize text to an audio file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, svc, err := speechSetup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			return runTTS(ctx, cmd, svc, cfg, flags, strings.Join(args, " "))
		},
	}
	ttsCmd.Flags().StringVarP(&flags.output, "out", "o", "", "Output file, generated from the format when empty")
	ttsCmd.Flags().StringVar(&flags.voice, "voice", "", "Voice ID, defaults to SPEECH_TTS_VOICE")

	speechCmd.AddCommand(asrCmd, ttsCmd)
	return speechCmd
}

func speechSetup(cmd *cobra.Command) (*config.Config, *speechService.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	observability.InitLoggerTo(cmd.ErrOrStderr(), cfg.Log.Level, true)

	if !cfg.Speech.Enabled() {
		return nil, nil, errSpeechDisabled
	}
	return cfg, speechService.NewService(cfg.Speech.Model()), nil
}

func runASR(ctx context.Context, cmd *cobra.Command, svc speechService.Transcriber, cfg *config.Config, flags *speechFlags, audioPath string) error {
	file, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	format := flags.format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
		if format == "" {
			format = "wav"
		}
	}
	language := flags.language
	if language == "" {
		language = cfg.Voice.Locale
	}

	resp, err := svc.TranscribeAudio(ctx, &speechmodel.ASRRequest{
		SessionID:  "manual-" + uuid.NewString(),
		AudioData:  file,
		Format:     format,
		Language:   language,
		SampleRate: flags.sampleRate,
	})
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
	return nil
}

func runTTS(ctx context.Context, cmd *cobra.Command, svc speechService.Synthesizer, cfg *config.Config, flags *speechFlags, text string) error {
	if strings.TrimSpace(text) == "" {
		return speechService.ErrEmptyText
	}

	format := flags.format
	if format == "" {
		format = "mp3"
	}
	voice := flags.voice
	if voice == "" {
		voice = cfg.Speech.TTSVoice
	}
	language := flags.language
	if language == "" {
		language = cfg.Voice.Locale
	}

	resp, err := svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		SessionID: "manual-" + uuid.NewString(),
		Text:      text,
		Voice:     voice,
		Format:    format,
		Language:  language,
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	output := flags.output
	if output == "" {
		ext := resp.Format
		if ext == "" {
			ext = format
		}
		output = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), ext)
	}
	if err := os.WriteFile(output, resp.AudioData, 0o644); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(resp.AudioData), output)
	return nil
}
