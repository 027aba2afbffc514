package event

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	commentsDomain "github.com/felixgeelhaar/capstan/internal/comments/domain"
	"github.com/spf13/cobra"
)

var commentAuthor string

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage event comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add [event-id] [body]",
	Short: "Attach a comment to an event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CommentStore == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		comment, err := commentsDomain.NewComment(args[0], commentAuthor, args[1])
		if err != nil {
			return err
		}
		if err := app.CommentStore.Save(cmd.Context(), comment); err != nil {
			return fmt.Errorf("failed to save comment: %w", err)
		}

		fmt.Printf("Comment added: %s\n", comment.ID)
		return nil
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list [event-id]",
	Short: "List an event's comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CommentStore == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		comments, err := app.CommentStore.ListByEvent(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list comments: %w", err)
		}
		if len(comments) == 0 {
			fmt.Println("No comments")
			return nil
		}

		for _, comment := range comments {
			fmt.Printf("%s  %s  %s\n",
				comment.CreatedAt.Format(time.RFC3339), comment.Author, comment.Body)
		}
		return nil
	},
}

func init() {
	commentAddCmd.Flags().StringVar(&commentAuthor, "author", "", "comment author")
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentListCmd)
}
