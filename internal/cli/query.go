package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question from the indexed papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, flags.Verbose, cmd.ErrOrStderr())
			a, err := newApp(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.svc.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.String())
			return nil
		},
	}
}
