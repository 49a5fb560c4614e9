// Package tui is the interactive admin panel: guarded views over the panel's caches,
// edit dialogs and toasts.
package tui

import (
	"context"
	"io"
	"log/slog"

	"shopadmin/internal/admin"
	"shopadmin/internal/notify"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	Logger *slog.Logger
}

// Run blocks until the user quits or ctx is done. q must be the notifier the panel's
// coordinators were built with.
func Run(ctx context.Context, p *admin.Panel, q *notify.Queue, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := newAppModel(ctx, p, q, opts.Logger)
	defer m.close()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
