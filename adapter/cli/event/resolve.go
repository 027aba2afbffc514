package event

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [event-id]",
	Short: "Resolve an event's authoritative source",
	Long: `Derive which subsystem currently owns the event: the workflow engine,
the scheduler, or the archive.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.MutationCoordinator == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		resolution, err := app.MutationCoordinator.ResolveSource(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve event source: %w", err)
		}

		fmt.Printf("Event %s\n", args[0])
		fmt.Printf("  source: %s\n", resolution.Source)
		fmt.Printf("  reason: %s\n", resolution.Reason)
		return nil
	},
}
