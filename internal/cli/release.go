package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReleasePracticeCommand(opts *RootOptions, deps Deps) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "release-practice",
		Short: "Вернуть в практику вопросы турниров с истекшей задержкой",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			releaser, closeFn, err := deps.OpenReleaser(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			released, err := releaser.ReleaseDuePractice(ctx, deps.Now())
			if err != nil {
				return fmt.Errorf("practice release failed after %d tournament(s): %w", released, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Турниров возвращено в практику: %d\n", released)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "ограничение времени прохода")
	return cmd
}
