package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/felixgeelhaar/capstan/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	"github.com/spf13/cobra"
)

var (
	eventID      string
	start        string
	end          string
	presenters   []string
	mediaPackage string
	source       string
)

var eventCmd = &cobra.Command{
	Use:   "event [agent-id]",
	Short: "Schedule a single recording",
	Long: `Reserve one recording window on a capture agent.

Examples:
  capstan schedule event room-042 --start 2026-03-10T09:00:00Z --end 2026-03-10T10:00:00Z
  capstan schedule event room-042 --start 2026-03-10T09:00:00Z --end 2026-03-10T10:00:00Z --presenter alice --presenter bob`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ScheduleEventHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		startAt, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return fmt.Errorf("invalid start time (use RFC 3339): %w", err)
		}
		endAt, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return fmt.Errorf("invalid end time (use RFC 3339): %w", err)
		}

		result, err := app.ScheduleEventHandler.Handle(cmd.Context(), commands.ScheduleEventCommand{
			EventID:      eventID,
			AgentID:      args[0],
			Start:        startAt,
			End:          endAt,
			Presenters:   presenters,
			MediaPackage: mediaPackage,
			Source:       source,
		})
		if err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				fmt.Println("Scheduling conflict:")
				for _, conflicting := range conflict.Conflicts {
					fmt.Printf("  %s on %s: %s - %s\n",
						conflicting.ID(), conflicting.AgentID(),
						conflicting.Period().Start().Format(time.RFC3339),
						conflicting.Period().End().Format(time.RFC3339))
				}
			}
			return fmt.Errorf("failed to schedule event: %w", err)
		}

		fmt.Printf("Event scheduled: %s\n", result.EventID)
		fmt.Printf("  agent: %s\n", args[0])
		fmt.Printf("  window: %s - %s\n",
			result.Period.Start().Format(time.RFC3339),
			result.Period.End().Format(time.RFC3339))

		return nil
	},
}

func init() {
	eventCmd.Flags().StringVar(&eventID, "id", "", "event id (generated when empty)")
	eventCmd.Flags().StringVar(&start, "start", "", "recording start (RFC 3339)")
	eventCmd.Flags().StringVar(&end, "end", "", "recording end (RFC 3339)")
	eventCmd.Flags().StringArrayVar(&presenters, "presenter", nil, "presenter (repeatable)")
	eventCmd.Flags().StringVar(&mediaPackage, "media-package", "", "media package reference")
	eventCmd.Flags().StringVar(&source, "source", "cli", "scheduling source")
	_ = eventCmd.MarkFlagRequired("start")
	_ = eventCmd.MarkFlagRequired("end")
}
