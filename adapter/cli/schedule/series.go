package schedule

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/felixgeelhaar/capstan/internal/scheduling/application/commands"
	"github.com/spf13/cobra"
)

var (
	rule               string
	windowStart        string
	windowEnd          string
	durationMinutes    int
	timezone           string
	seriesPresenters   []string
	seriesMediaPackage string
	seriesSource       string
)

var seriesCmd = &cobra.Command{
	Use:   "series [agent-id]",
	Short: "Schedule a recurring series",
	Long: `Expand a recurrence rule inside a scheduling window and reserve every
instance on the agent, all-or-nothing.

Examples:
  capstan schedule series room-042 \
    --rule "FREQ=WEEKLY;BYDAY=MO,WE" \
    --from 2026-03-01T00:00:00Z --to 2026-06-30T00:00:00Z \
    --duration 90 --tz Europe/Berlin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ScheduleSeriesHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		from, err := time.Parse(time.RFC3339, windowStart)
		if err != nil {
			return fmt.Errorf("invalid window start (use RFC 3339): %w", err)
		}
		to, err := time.Parse(time.RFC3339, windowEnd)
		if err != nil {
			return fmt.Errorf("invalid window end (use RFC 3339): %w", err)
		}

		result, err := app.ScheduleSeriesHandler.Handle(cmd.Context(), commands.ScheduleSeriesCommand{
			AgentID:      args[0],
			Rule:         rule,
			WindowStart:  from,
			WindowEnd:    to,
			Duration:     time.Duration(durationMinutes) * time.Minute,
			Timezone:     timezone,
			Presenters:   seriesPresenters,
			MediaPackage: seriesMediaPackage,
			Source:       seriesSource,
		})
		if err != nil {
			return fmt.Errorf("failed to schedule series: %w", err)
		}

		fmt.Printf("Series scheduled: %d events\n", len(result.EventIDs))
		for i, id := range result.EventIDs {
			fmt.Printf("  %s: %s - %s\n", id,
				result.Periods[i].Start().Format(time.RFC3339),
				result.Periods[i].End().Format(time.RFC3339))
		}

		return nil
	},
}

func init() {
	seriesCmd.Flags().StringVar(&rule, "rule", "", "recurrence rule (RRULE syntax)")
	seriesCmd.Flags().StringVar(&windowStart, "from", "", "scheduling window start (RFC 3339)")
	seriesCmd.Flags().StringVar(&windowEnd, "to", "", "scheduling window end (RFC 3339)")
	seriesCmd.Flags().IntVar(&durationMinutes, "duration", 0, "recording duration in minutes")
	seriesCmd.Flags().StringVar(&timezone, "tz", "UTC", "timezone for rule expansion")
	seriesCmd.Flags().StringArrayVar(&seriesPresenters, "presenter", nil, "presenter (repeatable)")
	seriesCmd.Flags().StringVar(&seriesMediaPackage, "media-package", "", "media package reference")
	seriesCmd.Flags().StringVar(&seriesSource, "source", "cli", "scheduling source")
	_ = seriesCmd.MarkFlagRequired("rule")
	_ = seriesCmd.MarkFlagRequired("from")
	_ = seriesCmd.MarkFlagRequired("to")
	_ = seriesCmd.MarkFlagRequired("duration")
}
