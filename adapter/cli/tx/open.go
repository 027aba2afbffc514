package tx

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [source]",
	Short: "Open a scheduling transaction",
	Long: `Open a transaction for a scheduling source. At most one transaction
may be open per source at a time.

Examples:
  capstan tx open timetable-import`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.TransactionManager == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		transaction, err := app.TransactionManager.Open(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to open transaction: %w", err)
		}

		fmt.Printf("Transaction opened: %s\n", transaction.ID())
		fmt.Printf("  source: %s\n", transaction.Source())
		return nil
	},
}
