package event

import (
	"fmt"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/spf13/cobra"
)

var stripCatalogCmd = &cobra.Command{
	Use:   "strip-catalog [event-id] [flavor]",
	Short: "Remove catalogs by flavor",
	Long: `Remove every metadata catalog of the given flavor from the event's
media package in its authoritative subsystem.

Examples:
  capstan event strip-catalog 1f0c... security/xacml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.MutationCoordinator == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		if err := app.MutationCoordinator.RemoveCatalogByFlavor(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to remove catalog: %w", err)
		}

		fmt.Printf("Catalogs removed: %s (flavor %s)\n", args[0], args[1])
		return nil
	},
}
