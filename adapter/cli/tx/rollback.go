package tx

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [transaction-id]",
	Short: "Roll back a scheduling transaction",
	Long:  `Discard every staged event and release the source lock.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.TransactionManager == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		if err := app.TransactionManager.Rollback(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to roll back transaction: %w", err)
		}

		fmt.Printf("Transaction rolled back: %s\n", args[0])
		return nil
	},
}
