package tx

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/felixgeelhaar/capstan/internal/scheduling/application/services"
	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	"github.com/spf13/cobra"
)

var (
	agentID      string
	eventID      string
	start        string
	end          string
	presenters   []string
	mediaPackage string
)

var addCmd = &cobra.Command{
	Use:   "add [transaction-id]",
	Short: "Stage an event into a transaction",
	Long: `Screen a candidate recording window against committed and already
staged events, then stage it into the transaction. Nothing is persisted
until the transaction commits.

Examples:
  capstan tx add 1f0c... --agent room-042 --start 2026-03-10T09:00:00Z --end 2026-03-10T10:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.TransactionManager == nil {
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
		period, err := domain.NewPeriod(startAt, endAt)
		if err != nil {
			return err
		}

		event, err := app.TransactionManager.AddEvent(cmd.Context(), args[0], services.AddEventParams{
			EventID:      eventID,
			AgentID:      agentID,
			Period:       period,
			Presenters:   presenters,
			MediaPackage: mediaPackage,
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
			return fmt.Errorf("failed to stage event: %w", err)
		}

		fmt.Printf("Event staged: %s\n", event.ID())
		fmt.Printf("  agent: %s\n", event.AgentID())
		fmt.Printf("  window: %s - %s\n",
			event.Period().Start().Format(time.RFC3339),
			event.Period().End().Format(time.RFC3339))
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&agentID, "agent", "", "capture agent id")
	addCmd.Flags().StringVar(&eventID, "id", "", "event id (generated when empty)")
	addCmd.Flags().StringVar(&start, "start", "", "recording start (RFC 3339)")
	addCmd.Flags().StringVar(&end, "end", "", "recording end (RFC 3339)")
	addCmd.Flags().StringArrayVar(&presenters, "presenter", nil, "presenter (repeatable)")
	addCmd.Flags().StringVar(&mediaPackage, "media-package", "", "media package reference")
	_ = addCmd.MarkFlagRequired("agent")
	_ = addCmd.MarkFlagRequired("start")
	_ = addCmd.MarkFlagRequired("end")
}
