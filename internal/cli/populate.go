package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPopulateCmd(flags *GlobalFlags) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Index new segments from the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, flags.Verbose, cmd.ErrOrStderr())
			a, err := newApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.svc.Populate(cmd.Context(), reset)
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d new segments (%d already present, %d batches)\n", report.Added, report.Skipped, report.Batches)
			if err != nil {
				return &ExitError{Code: ExitIngestionFailed, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the vector store before indexing")
	return cmd
}
