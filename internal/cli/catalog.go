package cli

import (
	"errors"
	"strings"

	"shopadmin/internal/model"

	"github.com/spf13/cobra"
)

func newCategoriesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "Category commands",
	}
	cmd.AddCommand(categoriesRes.listCmd(app, true))
	cmd.AddCommand(categoriesRes.showCmd(app, true))
	cmd.AddCommand(newCategoriesCreateCmd(app))
	cmd.AddCommand(newCategoriesUpdateCmd(app))
	cmd.AddCommand(categoriesRes.deleteCmd(app))
	return cmd
}

func newCategoriesCreateCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := categoriesRes.loaded(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			cat, err := c.Create(ctxOf(cmd), model.Category{Name: strings.TrimSpace(name)})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cat})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Category name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// Category updates go through the edit dialog, the same path the TUI uses.
func newCategoriesUpdateCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, c, err := categoriesRes.loaded(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			it, ok := c.Store().Snapshot().Find(strings.TrimSpace(args[0]))
			if !ok {
				return writeErr(cmd, errNotFound("category", args[0]))
			}
			if err := p.CategoryDialog.Select(it.Entity); err != nil {
				return writeErr(cmd, err)
			}
			if err := p.CategoryDialog.SetDraft(name); err != nil {
				return writeErr(cmd, err)
			}
			next := model.Category{ID: it.Entity.ID, Name: strings.TrimSpace(p.CategoryDialog.State().Draft)}
			cat, err := p.CategoryDialog.SubmitUpdate(ctxOf(cmd), next)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cat})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New category name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProductsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product", "prd"},
		Short:   "Product commands",
	}
	cmd.AddCommand(productsRes.listCmd(app, true))
	cmd.AddCommand(productsRes.showCmd(app, true))
	cmd.AddCommand(newProductsCreateCmd(app))
	cmd.AddCommand(newProductsUpdateCmd(app))
	cmd.AddCommand(productsRes.deleteCmd(app))
	return cmd
}

type productFlags struct {
	name, description, brand, image, category string
	price                                     float64
	quantity, countInStock                    int
}

func (f *productFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Product name")
	cmd.Flags().StringVar(&f.description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&f.brand, "brand", "", "Brand")
	cmd.Flags().StringVar(&f.image, "image", "", "Image path as returned by `upload`")
	cmd.Flags().StringVar(&f.category, "category", "", "Category id")
	cmd.Flags().Float64Var(&f.price, "price", 0, "Price")
	cmd.Flags().IntVar(&f.quantity, "quantity", 0, "Quantity")
	cmd.Flags().IntVar(&f.countInStock, "count-in-stock", 0, "Count in stock")
}

var productFlagNames = []string{"name", "description", "brand", "image", "category", "price", "quantity", "count-in-stock"}

func (f *productFlags) any(cmd *cobra.Command) bool {
	for _, n := range productFlagNames {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

// apply overlays only the flags the caller set.
func (f *productFlags) apply(cmd *cobra.Command, p *model.Product) {
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = strings.TrimSpace(f.name)
	}
	if changed("description") {
		p.Description = f.description
	}
	if changed("brand") {
		p.Brand = strings.TrimSpace(f.brand)
	}
	if changed("image") {
		p.Image = strings.TrimSpace(f.image)
	}
	if changed("category") {
		p.Category = strings.TrimSpace(f.category)
	}
	if changed("price") {
		p.Price = f.price
	}
	if changed("quantity") {
		p.Quantity = f.quantity
	}
	if changed("count-in-stock") {
		p.CountInStock = f.countInStock
	}
}

func newProductsCreateCmd(app *App) *cobra.Command {
	var f productFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := productsRes.loaded(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			var p model.Product
			f.apply(cmd, &p)
			out, err := c.Create(ctxOf(cmd), p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}

	f.bind(cmd)
	return cmd
}

func newProductsUpdateCmd(app *App) *cobra.Command {
	var f productFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a product (only the given flags change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !f.any(cmd) {
				return writeErr(cmd, errors.New("nothing to update"))
			}
			_, c, err := productsRes.loaded(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			it, ok := c.Store().Snapshot().Find(strings.TrimSpace(args[0]))
			if !ok {
				return writeErr(cmd, errNotFound("product", args[0]))
			}
			out, err := productsRes.update(ctxOf(cmd), c, it.Entity, func(p *model.Product) { f.apply(cmd, p) })
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}

	f.bind(cmd)
	return cmd
}
