package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"paperrag/internal/tui"
)

func newTUICmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// Log lines would corrupt the alternate screen.
			logger := newLogger(cfg.Log, false, io.Discard)
			a, err := newApp(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			summary := fmt.Sprintf("corpus %s  embedder %s  store %s  completer %s",
				cfg.DataPath, cfg.Embedder.Type, cfg.VectorStore.Type, cfg.Completer.Type)
			m := tui.New(cmd.Context(), a.svc, summary)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
