package schedule

import (
	"github.com/spf13/cobra"
)

// Cmd is the schedule command group
var Cmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule recordings",
	Long:  `Reserve recording windows on capture agents, single or recurring.`,
}

func init() {
	Cmd.AddCommand(eventCmd)
	Cmd.AddCommand(seriesCmd)
	Cmd.AddCommand(calendarCmd)
}
