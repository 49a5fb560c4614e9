package cli

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"shopadmin/internal/blob"
	"shopadmin/internal/config"
	"shopadmin/internal/server"
	"shopadmin/internal/store"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend (REST API, sqlite, image uploads)",
		Long: strings.TrimSpace(`
Run the development backend the admin panel talks to.

Data lives in a sqlite file under the config dir unless --db (or serve.db) says
otherwise. Uploaded images go to the blob store named by serve.uploads.driver
(fs, s3 or memory). The first account registered becomes the admin.
`),
		Example: strings.TrimSpace(`
# Serve on the default address
shopadmin serve

# Keep images in an S3-compatible bucket
shopadmin config set serve.uploads.driver s3
shopadmin config set serve.uploads.bucket shop-images
shopadmin serve --addr 127.0.0.1:5000
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(ctxOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dir, err := config.Dir()
			if err != nil {
				return writeErr(cmd, err)
			}
			sc := app.cfg.Serve

			listenAddr := firstNonEmpty(addr, sc.Addr, config.DefaultAddr)
			path := firstNonEmpty(dbPath, sc.DB, "shop.db")
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return writeErr(cmd, err)
			}

			secret := []byte(strings.TrimSpace(sc.Secret))
			if len(secret) == 0 {
				secret, err = server.LoadOrInitSecret(filepath.Join(dir, "serve", "secret.key"))
				if err != nil {
					return writeErr(cmd, err)
				}
			}

			level, err := parseLevel(sc.LogLevel)
			if err != nil {
				return writeErr(cmd, err)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			db, err := store.Open(ctx, path)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()

			blobs, err := blob.Open(ctx, blob.Config{
				Driver:   sc.Uploads.Driver,
				Dir:      sc.Uploads.Dir,
				Bucket:   sc.Uploads.Bucket,
				Region:   sc.Uploads.Region,
				Endpoint: sc.Uploads.Endpoint,
			}, dir)
			if err != nil {
				return writeErr(cmd, err)
			}

			srv, err := server.New(server.Config{Addr: listenAddr, Secret: secret, Logger: logger}, db, blobs)
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"url":     "http://" + ln.Addr().String(),
					"db":      path,
					"uploads": string(blobs.Driver()),
				},
			})
			if err := srv.Serve(ctx, ln); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from serve.addr, then "+config.DefaultAddr+")")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path")
	return cmd
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid serve.logLevel %q", s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
