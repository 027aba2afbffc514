package tx

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Roll back stale transactions",
	Long: `Roll back open transactions that have been idle longer than the
configured maximum age, releasing their source locks. The worker runs this
on a schedule; the command exists for manual cleanup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Sweeper == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		swept, err := app.Sweeper.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		fmt.Printf("Swept %d stale transaction(s)\n", swept)
		return nil
	},
}
