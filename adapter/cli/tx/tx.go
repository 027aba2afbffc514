package tx

import (
	"github.com/spf13/cobra"
)

// Cmd is the transaction command group
var Cmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage scheduling transactions",
	Long: `Open a source-scoped scheduling transaction, stage candidate events
into it, then commit or roll back the whole batch.`,
}

func init() {
	Cmd.AddCommand(openCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(commitCmd)
	Cmd.AddCommand(rollbackCmd)
	Cmd.AddCommand(sweepCmd)
}
