package event

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	"github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	"github.com/spf13/cobra"
)

var aclFile string

var aclCmd = &cobra.Command{
	Use:   "acl [event-id]",
	Short: "Replace an event's access control list",
	Long: `Replace the event's ACL from a JSON file. Events currently owned by a
workflow reject the change until the workflow finishes.

The file holds an array of entries:
  [{"role": "ROLE_ADMIN", "action": "write", "allow": true}]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.MutationCoordinator == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		raw, err := os.ReadFile(aclFile)
		if err != nil {
			return fmt.Errorf("read ACL file: %w", err)
		}
		var acl domain.ACL
		if err := json.Unmarshal(raw, &acl); err != nil {
			return fmt.Errorf("parse ACL file: %w", err)
		}

		if err := app.MutationCoordinator.UpdateACL(cmd.Context(), args[0], acl); err != nil {
			return fmt.Errorf("failed to update ACL: %w", err)
		}

		fmt.Printf("ACL updated: %s (%d entries)\n", args[0], len(acl))
		return nil
	},
}

func init() {
	aclCmd.Flags().StringVarP(&aclFile, "file", "f", "", "JSON file holding the ACL entries")
	_ = aclCmd.MarkFlagRequired("file")
}
