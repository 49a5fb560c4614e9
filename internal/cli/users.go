package cli

import (
	"errors"
	"strings"

	"shopadmin/internal/model"

	"github.com/spf13/cobra"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User administration (admin only)",
	}
	cmd.AddCommand(usersRes.listCmd(app, false))
	cmd.AddCommand(usersRes.showCmd(app, false))
	cmd.AddCommand(newUsersUpdateCmd(app))
	cmd.AddCommand(usersRes.deleteCmd(app))
	return cmd
}

func newUsersUpdateCmd(app *App) *cobra.Command {
	var username, email string
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user's name, email or admin flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			if !changed("username") && !changed("email") && !changed("admin") {
				return writeErr(cmd, errors.New("nothing to update (use --username, --email or --admin)"))
			}
			_, c, err := usersRes.loaded(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			it, ok := c.Store().Snapshot().Find(strings.TrimSpace(args[0]))
			if !ok {
				return writeErr(cmd, errNotFound("user", args[0]))
			}
			out, err := usersRes.update(ctxOf(cmd), c, it.Entity, func(u *model.User) {
				if changed("username") {
					u.Username = strings.TrimSpace(username)
				}
				if changed("email") {
					u.Email = strings.TrimSpace(email)
				}
				if changed("admin") {
					u.IsAdmin = isAdmin
				}
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "New username")
	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant (--admin) or revoke (--admin=false) admin")
	return cmd
}
