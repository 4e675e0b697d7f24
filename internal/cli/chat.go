package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webhelpdesk/helpdesk/internal/observability"
	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
	"github.com/webhelpdesk/helpdesk/internal/terminal"
)

// NewChatCommand launches the terminal chat UI.
func NewChatCommand() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Launch the terminal chat",
		Long:  "Launch an interactive chat. Enter sends, Ctrl+R starts/stops push-to-talk, Ctrl+T toggles spoken answers, Esc quits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// 界面占用终端，日志写文件
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			observability.InitLoggerTo(f, cfg.Log.Level, false)

			askClient, err := newAskClient(cfg)
			if err != nil {
				return err
			}

			opts := terminal.Options{
				Asker:        askClient,
				Locale:       cfg.Voice.Locale,
				SpeakDefault: cfg.Voice.SpeakDefault,
				SampleRate:   cfg.Voice.SampleRate,
				PlaybackRate: cfg.Voice.PlaybackRate,
				VAD: speechService.VADConfig{
					EnergyThreshold: cfg.Voice.VADThreshold,
					SilenceFrames:   cfg.Voice.SilenceFrames(),
				},
				MaxRecording: cfg.Voice.MaxRecording,
				TTSVoice:     cfg.Speech.TTSVoice,
			}
			if cfg.Speech.Enabled() {
				opts.Speech = speechService.NewService(cfg.Speech.Model())
			}

			session, err := terminal.NewSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "helpdesk.log", "Write logs to this file while the UI is running")
	return cmd
}
