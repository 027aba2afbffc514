package event

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove [event-id]",
	Short: "Remove an event everywhere",
	Long: `Delete the event from the scheduler, the workflow engine, and the
archive. Partial removals are not rolled back; a failed subsystem leaves the
removal retryable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.MutationCoordinator == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		report, err := app.MutationCoordinator.RemoveEvent(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to remove event: %w", err)
		}

		fmt.Printf("Removal result: %s\n", report.Aggregate())
		fmt.Printf("  scheduler: %s\n", report.Scheduler)
		fmt.Printf("  workflow:  %s\n", report.Workflow)
		fmt.Printf("  archive:   %s\n", report.Archive)

		switch report.Aggregate() {
		case domain.OutcomeFailed:
			return fmt.Errorf("removal incomplete - retry to finish")
		case domain.OutcomeUnauthorized:
			return fmt.Errorf("removal not permitted")
		}
		return nil
	},
}
