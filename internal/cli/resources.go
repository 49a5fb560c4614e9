package cli

import (
	"context"
	"errors"
	"strings"

	"shopadmin/internal/admin"
	"shopadmin/internal/apiclient"
	"shopadmin/internal/model"
	"shopadmin/internal/mutate"

	"github.com/spf13/cobra"
)

// resource binds one admin collection to the panel pieces the commands need.
type resource[T model.Record[T]] struct {
	noun   string
	remote func(*apiclient.Client) *apiclient.Resource[T]
	coord  func(*admin.Panel) *mutate.Coordinator[T]
}

var (
	categoriesRes = resource[model.Category]{
		noun:   "category",
		remote: (*apiclient.Client).Categories,
		coord:  func(p *admin.Panel) *mutate.Coordinator[model.Category] { return p.Categories },
	}
	productsRes = resource[model.Product]{
		noun:   "product",
		remote: (*apiclient.Client).Products,
		coord:  func(p *admin.Panel) *mutate.Coordinator[model.Product] { return p.Products },
	}
	usersRes = resource[model.User]{
		noun:   "user",
		remote: (*apiclient.Client).Users,
		coord:  func(p *admin.Panel) *mutate.Coordinator[model.User] { return p.Users },
	}
)

// loaded returns a signed-in admin panel whose cache for this resource is populated, so
// optimistic changes and notifications see the current rows.
func (r resource[T]) loaded(cmd *cobra.Command, app *App) (*admin.Panel, *mutate.Coordinator[T], error) {
	p, err := app.signedIn(cmd, true)
	if err != nil {
		return nil, nil, err
	}
	c := r.coord(p)
	if err := c.Store().Refresh(ctxOf(cmd)); err != nil {
		return nil, nil, err
	}
	return p, c, nil
}

func (r resource[T]) listCmd(app *App, public bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List " + r.noun + " records",
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []T
			if public {
				p, err := app.panel(cmd, nil)
				if err != nil {
					return writeErr(cmd, err)
				}
				st := r.coord(p).Store()
				if err := st.Refresh(ctxOf(cmd)); err != nil {
					return writeErr(cmd, err)
				}
				items = st.Snapshot().Entities()
			} else {
				_, c, err := r.loaded(cmd, app)
				if err != nil {
					return writeErr(cmd, err)
				}
				items = c.Store().Snapshot().Entities()
			}
			if items == nil {
				items = []T{}
			}
			return writeOut(cmd, app, map[string]any{"data": items})
		},
	}
}

func (r resource[T]) showCmd(app *App, public bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one " + r.noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := r.get(cmd, app, public, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": v})
		},
	}
}

func (r resource[T]) get(cmd *cobra.Command, app *App, public bool, id string) (T, error) {
	var zero T
	id = strings.TrimSpace(id)
	if id == "" {
		return zero, errors.New("missing id")
	}
	var p *admin.Panel
	var err error
	if public {
		p, err = app.panel(cmd, nil)
	} else {
		p, err = app.signedIn(cmd, true)
	}
	if err != nil {
		return zero, err
	}
	return r.remote(p.Client).Get(ctxOf(cmd), id)
}

func (r resource[T]) deleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + r.noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := r.loaded(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			v, err := c.Delete(ctxOf(cmd), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": v})
		},
	}
}

// update loads the current record, applies edit and submits it through the coordinator.
func (r resource[T]) update(ctx context.Context, c *mutate.Coordinator[T], cur T, edit func(*T)) (T, error) {
	next := cur
	edit(&next)
	return c.Update(ctx, cur.EntityID(), next)
}
