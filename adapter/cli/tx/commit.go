package tx

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit [transaction-id]",
	Short: "Commit a scheduling transaction",
	Long: `Re-validate every staged event against committed state and persist
the whole batch. A conflict detected at commit time rolls the transaction
back; nothing is persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.TransactionManager == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		if err := app.TransactionManager.Commit(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		fmt.Printf("Transaction committed: %s\n", args[0])
		return nil
	},
}
