package commands

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspects and removes registered users.",
}

var listUsersCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists registered users with their change detection state.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Queries.GetUsers(ctx)
		if err != nil {
			return err
		}
		tasks, err := a.Queries.GetTasks(ctx)
		if err != nil {
			return err
		}
		queued := map[string]int{}
		for _, task := range tasks {
			queued[task.Login]++
		}

		t := newTable()
		t.AppendHeader(table.Row{"Login", "Child", "Fingerprint", "Snapshot", "Subscriptions", "Queued"})
		for _, user := range users {
			fingerprint := ""
			snapshot := false
			change, err := a.Queries.GetChange(ctx, user.Login)
			switch {
			case err == nil:
				fingerprint = change.LastUpdate
				snapshot = change.LastGrades.Valid
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
			subscriptions, err := a.Queries.GetUserPush(ctx, user.Login)
			if err != nil {
				return err
			}
			t.AppendRow(table.Row{
				user.Login,
				user.ChildLogin.String,
				fingerprint,
				snapshot,
				len(subscriptions),
				queued[user.Login],
			})
		}
		t.Render()
		return nil
	},
}

var removeUsersCmd = &cobra.Command{
	Use:   "remove <login>...",
	Short: "Removes users with their snapshots, queued checks and subscriptions.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		for _, login := range args {
			err := a.Detector.Deregister(cmd.Context(), login)
			if err != nil {
				return fmt.Errorf("remove %s: %w", login, err)
			}
			fmt.Println("removed", login)
		}
		return nil
	},
}

func init() {
	usersCmd.AddCommand(listUsersCmd, removeUsersCmd)
	rootCmd.AddCommand(usersCmd)
}
