// Package cli 实现 helpdesk 命令行：终端聊天、单次提问和语音调试。
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/webhelpdesk/helpdesk/internal/config"
	"github.com/webhelpdesk/helpdesk/internal/observability"
	"github.com/webhelpdesk/helpdesk/internal/service/ask"
)

// NewRootCommand builds the helpdesk command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "helpdesk",
		Short:         "Help desk chat client",
		Long:          `helpdesk talks to the question-answering service from the terminal, with optional push-to-talk and spoken answers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("env-file", ".env", "Load environment variables from this file")

	rootCmd.AddCommand(NewChatCommand())
	rootCmd.AddCommand(NewAskCommand())
	rootCmd.AddCommand(NewSpeechCommand())

	return rootCmd
}

// loadConfig 加载 .env 与环境变量。
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if envErr != nil {
		logger := observability.Component("cli")
		logger.Debug().Err(envErr).Str("file", envFile).Msg("env file not loaded, using system environment variables only")
	}
	return cfg, nil
}

func newAskClient(cfg *config.Config) (*ask.Client, error) {
	client, err := ask.NewClient(ask.Options{
		BaseURL:       cfg.Ask.URL,
		Timeout:       cfg.Ask.Timeout,
		RetryAttempts: cfg.Ask.RetryAttempts,
		RetryBackoff:  cfg.Ask.RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("create ask client: %w", err)
	}
	return client, nil
}
