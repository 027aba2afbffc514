package event

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	"github.com/spf13/cobra"
)

var (
	title      string
	agentID    string
	start      string
	end        string
	presenters []string
)

var updateCmd = &cobra.Command{
	Use:   "update [event-id]",
	Short: "Update event metadata",
	Long: `Apply a partial metadata change to the event's authoritative
subsystem. Only the flags you pass are changed.

Examples:
  capstan event update 1f0c... --title "Linear Algebra II"
  capstan event update 1f0c... --start 2026-03-10T10:00:00Z --end 2026-03-10T11:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.MutationCoordinator == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		var update domain.MetadataUpdate
		if cmd.Flags().Changed("title") {
			update.Title = &title
		}
		if cmd.Flags().Changed("agent") {
			update.AgentID = &agentID
		}
		if cmd.Flags().Changed("presenter") {
			update.Presenters = &presenters
		}
		if start != "" {
			parsed, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("invalid start time (use RFC 3339): %w", err)
			}
			update.Start = &parsed
		}
		if end != "" {
			parsed, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("invalid end time (use RFC 3339): %w", err)
			}
			update.End = &parsed
		}

		if update.IsEmpty() {
			return fmt.Errorf("nothing to update - pass at least one flag")
		}

		if err := app.MutationCoordinator.UpdateMetadata(cmd.Context(), args[0], update); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}

		fmt.Printf("Event updated: %s\n", args[0])
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&title, "title", "", "event title")
	updateCmd.Flags().StringVar(&agentID, "agent", "", "capture agent id")
	updateCmd.Flags().StringVar(&start, "start", "", "recording start (RFC 3339)")
	updateCmd.Flags().StringVar(&end, "end", "", "recording end (RFC 3339)")
	updateCmd.Flags().StringArrayVar(&presenters, "presenter", nil, "presenter (repeatable)")
}
