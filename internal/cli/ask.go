package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webhelpdesk/helpdesk/internal/controller"
	"github.com/webhelpdesk/helpdesk/internal/observability"
)

// NewAskCommand sends one question and prints the answer.
func NewAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			observability.InitLoggerTo(cmd.ErrOrStderr(), cfg.Log.Level, true)

			client, err := newAskClient(cfg)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), client, cmd, strings.Join(args, " "))
		},
	}
}

func runAsk(ctx context.Context, asker controller.Asker, cmd *cobra.Command, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return controller.ErrEmptyQuestion
	}

	answer, err := asker.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
