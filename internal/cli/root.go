package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"shopadmin/internal/admin"
	"shopadmin/internal/apiclient"
	"shopadmin/internal/config"
	"shopadmin/internal/format"
	"shopadmin/internal/guard"
	"shopadmin/internal/notify"
	"shopadmin/internal/tui"

	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in; run `shopadmin login --email <email>`")

type App struct {
	Server     string
	Format     string
	PrettyJSON bool
	DebugLog   string

	cfg     *config.Config
	logger  *slog.Logger
	jar     *apiclient.FileJar
	closeLg func() error
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "shopadmin",
		Short:         "Shop admin panel: TUI, scriptable commands and a development backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive admin panel
  shopadmin

  # Run the development backend
  shopadmin serve

  # Scriptable commands
  shopadmin login --email admin@example.com --password secret123
  shopadmin categories list --format table

  # Direct lookup (shortcut for: shopadmin products show <product-id>)
  shopadmin prd-k2j4h5qa
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				if err := runTUI(cmd, app); err != nil {
					return writeErr(cmd, err)
				}
				return nil
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := app.init(); err != nil {
			return writeErr(cmd, err)
		}
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.closeLg != nil {
			return app.closeLg()
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Server, "server", envOr("SHOPADMIN_URL", ""), "Admin API base URL (default from config, then "+config.DefaultServer+")")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SHOPADMIN_FORMAT", ""), "Output format (json|edn|table)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.DebugLog, "debug-log", envOr("SHOPADMIN_DEBUG_LOG", ""), "Append debug logs to this file")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoAmICmd(app))
	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newProfileCmd(app))
	cmd.AddCommand(newCategoriesCmd(app))
	cmd.AddCommand(newProductsCmd(app))
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newUploadCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// init resolves flags > env > config file > defaults.
func (app *App) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app.cfg = cfg
	if strings.TrimSpace(app.Server) == "" {
		app.Server = cfg.ServerURL()
	}
	if strings.TrimSpace(app.Format) == "" {
		app.Format = cfg.Format
	}
	if !format.Valid(app.Format) {
		return fmt.Errorf("unknown format %q (expected %s)", app.Format, strings.Join(format.Names, "|"))
	}

	app.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if p := strings.TrimSpace(app.DebugLog); p != "" {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		app.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		app.closeLg = f.Close
	}
	return nil
}

// client builds an API client whose session cookie persists in the config dir.
func (app *App) client() (*apiclient.Client, *apiclient.FileJar, error) {
	path, err := config.SessionPath()
	if err != nil {
		return nil, nil, err
	}
	jar, err := apiclient.OpenFileJar(path)
	if err != nil {
		return nil, nil, err
	}
	c, err := apiclient.New(app.Server,
		apiclient.WithJar(jar),
		apiclient.WithTimeout(app.cfg.CallTimeout()),
		apiclient.WithLogger(app.logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return c, jar, nil
}

func (app *App) panel(cmd *cobra.Command, n notify.Notifier) (*admin.Panel, error) {
	c, jar, err := app.client()
	if err != nil {
		return nil, err
	}
	app.jar = jar
	if n == nil {
		n = notify.NewWriter(cmd.ErrOrStderr())
	}
	return admin.New(c, admin.Options{Notifier: n, Logger: app.logger}), nil
}

// signedIn builds a panel and requires a live session; adminOnly additionally requires
// the admin role.
func (app *App) signedIn(cmd *cobra.Command, adminOnly bool) (*admin.Panel, error) {
	p, err := app.panel(cmd, nil)
	if err != nil {
		return nil, err
	}
	st := p.Resolve(ctxOf(cmd))
	if !st.Status.SignedIn() {
		return nil, errNotSignedIn
	}
	if adminOnly && st.Status != guard.StatusAdmin {
		return nil, errors.New("admin role required")
	}
	return p, nil
}

func runTUI(cmd *cobra.Command, app *App) error {
	q := notify.NewQueue(32)
	p, err := app.panel(cmd, q)
	if err != nil {
		return err
	}
	return tui.Run(ctxOf(cmd), p, q, tui.Options{Logger: app.logger})
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
