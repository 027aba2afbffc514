package event

import (
	"github.com/spf13/cobra"
)

// Cmd is the event command group
var Cmd = &cobra.Command{
	Use:   "event",
	Short: "Manage event lifecycle",
	Long: `Inspect and mutate events across the scheduler, the workflow engine,
and the archive. Mutations are routed to whichever subsystem currently owns
the event.`,
}

func init() {
	Cmd.AddCommand(resolveCmd)
	Cmd.AddCommand(updateCmd)
	Cmd.AddCommand(aclCmd)
	Cmd.AddCommand(stripCatalogCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(commentCmd)
}
