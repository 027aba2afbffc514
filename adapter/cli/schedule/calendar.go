package schedule

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/spf13/cobra"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar [agent-id]",
	Short: "Print an agent's calendar",
	Long:  `Render an agent's committed recordings as an iCalendar document.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CalendarBuilder == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		serialized, err := app.CalendarBuilder.AgentCalendar(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to build calendar: %w", err)
		}

		fmt.Print(serialized)
		return nil
	},
}
