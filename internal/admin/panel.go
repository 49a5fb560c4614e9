// Package admin wires the client-side pieces of one signed-in admin session: the API
// client, the auth session, per-resource caches with their mutation coordinators, and
// the edit dialogs. The CLI and the TUI both build on a Panel.
package admin

import (
	"context"
	"io"
	"log/slog"

	"shopadmin/internal/apiclient"
	"shopadmin/internal/cache"
	"shopadmin/internal/failure"
	"shopadmin/internal/guard"
	"shopadmin/internal/model"
	"shopadmin/internal/mutate"
	"shopadmin/internal/notify"
	"shopadmin/internal/selection"
)

type Options struct {
	Notifier notify.Notifier
	Logger   *slog.Logger
	Metrics  *mutate.Metrics
}

type Panel struct {
	Client   *apiclient.Client
	Session  *guard.Session
	Registry *cache.Registry

	Categories *mutate.Coordinator[model.Category]
	Products   *mutate.Coordinator[model.Product]
	Users      *mutate.Coordinator[model.User]

	CategoryDialog *selection.Machine[model.Category]
	ProductDialog  *selection.Machine[model.Product]
	UserDialog     *selection.Machine[model.User]

	logger *slog.Logger
}

func New(client *apiclient.Client, opts Options) *Panel {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}

	p := &Panel{
		Client:   client,
		Session:  guard.NewSession(client, guard.WithSessionLogger(logger)),
		Registry: cache.NewRegistry(),
		logger:   logger,
	}
	mopts := []mutate.Option{
		mutate.WithLogger(logger),
		mutate.WithNotifier(notifier),
		mutate.WithMetrics(opts.Metrics),
		mutate.WithAuthFailureHandler(p.Session.HandleAuthFailure),
	}

	p.Categories = newCoordinator(p.Registry, "Category", client.Categories(), mopts)
	p.Products = newCoordinator(p.Registry, "Product", client.Products(), mopts)
	p.Users = newCoordinator(p.Registry, "User", client.Users(), mopts)

	p.CategoryDialog = selection.New[model.Category](p.Categories)
	p.ProductDialog = selection.New[model.Product](p.Products)
	p.UserDialog = selection.New[model.User](p.Users)

	p.Session.Register(
		p.Registry,
		p.Categories, p.Products, p.Users,
		p.CategoryDialog, p.ProductDialog, p.UserDialog,
	)
	return p
}

func newCoordinator[T model.Record[T]](reg *cache.Registry, label string, res *apiclient.Resource[T], opts []mutate.Option) *mutate.Coordinator[T] {
	st := cache.New(res.Name(), res.List)
	reg.Register(st)
	return mutate.New(label, st, res, opts...)
}

// Resolve settles the initial auth state from the session cookie.
func (p *Panel) Resolve(ctx context.Context) guard.AuthState {
	return p.Session.Resolve(ctx)
}

// SignIn logs in and switches the session to the returned user.
func (p *Panel) SignIn(ctx context.Context, cred model.Credentials) (model.User, error) {
	u, err := p.Client.Login(ctx, cred)
	if err != nil {
		return u, err
	}
	p.Session.Resolve(ctx)
	return u, p.Session.SignIn(u)
}

func (p *Panel) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	u, err := p.Client.Register(ctx, reg)
	if err != nil {
		return u, err
	}
	p.Session.Resolve(ctx)
	return u, p.Session.SignIn(u)
}

// SignOut always clears local state; a failed server logout is only logged.
func (p *Panel) SignOut(ctx context.Context) error {
	if err := p.Client.Logout(ctx); err != nil {
		p.logger.Warn("server logout failed", "err", err)
	}
	p.Session.Resolve(ctx)
	return p.Session.SignOut()
}

// UpdateProfile saves the caller's own profile. The identity is unchanged, so caches
// stay as they are.
func (p *Panel) UpdateProfile(ctx context.Context, upd apiclient.ProfileUpdate) (model.User, error) {
	u, err := p.Client.UpdateProfile(ctx, upd)
	if failure.IsAuth(err) {
		p.Session.HandleAuthFailure(failure.KindOf(err))
	}
	return u, err
}
