package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"shopadmin/internal/apiclient"
	"shopadmin/internal/model"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var email, password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password, passwordStdin)
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := app.panel(cmd, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			u, err := p.SignIn(ctxOf(cmd), model.Credentials{Email: strings.TrimSpace(email), Password: pw})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": u})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(app *App) *cobra.Command {
	var username, email, password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in (the first account becomes admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password, passwordStdin)
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := app.panel(cmd, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			u, err := p.Register(ctxOf(cmd), model.Registration{
				Username: strings.TrimSpace(username),
				Email:    strings.TrimSpace(email),
				Password: pw,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": u})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (at least 6 characters)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.panel(cmd, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := p.SignOut(ctxOf(cmd)); err != nil {
				return writeErr(cmd, err)
			}
			if err := app.jar.Clear(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"signedIn": false}})
		},
	}
}

func newWhoAmICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.panel(cmd, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			st := p.Resolve(ctxOf(cmd))
			out := map[string]any{"status": string(st.Status)}
			if st.User != nil {
				out["user"] = *st.User
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}

func newProfileCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your own profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.signedIn(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": *p.Session.State().User})
		},
	}
	cmd.AddCommand(newProfileUpdateCmd(app))
	return cmd
}

func newProfileUpdateCmd(app *App) *cobra.Command {
	var upd apiclient.ProfileUpdate
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update username, email or password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				pw, err := readPassword(cmd, "", true)
				if err != nil {
					return writeErr(cmd, err)
				}
				upd.Password = pw
			}
			if upd == (apiclient.ProfileUpdate{}) {
				return writeErr(cmd, errors.New("nothing to update (use --username, --email or --password)"))
			}
			p, err := app.signedIn(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			u, err := p.UpdateProfile(ctxOf(cmd), upd)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": u})
		},
	}

	cmd.Flags().StringVar(&upd.Username, "username", "", "New username")
	cmd.Flags().StringVar(&upd.Email, "email", "", "New email")
	cmd.Flags().StringVar(&upd.Password, "password", "", "New password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the new password from stdin")
	return cmd
}

// readPassword prefers --password, then stdin when asked.
func readPassword(cmd *cobra.Command, flag string, fromStdin bool) (string, error) {
	if !fromStdin {
		if flag == "" {
			return "", errors.New("missing password (use --password or --password-stdin)")
		}
		return flag, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
