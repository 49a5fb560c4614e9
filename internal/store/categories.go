package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"shopadmin/internal/model"
)

func scanCategory(r interface{ Scan(...any) error }) (model.Category, error) {
	var c model.Category
	err := r.Scan(&c.ID, &c.Name)
	return c, err
}

// ListCategories returns categories in creation order.
func (d *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	return queryRows(ctx, d.sql, func(r *sql.Rows) (model.Category, error) { return scanCategory(r) },
		`SELECT id, name FROM categories ORDER BY seq`)
}

func (d *DB) Category(ctx context.Context, id string) (model.Category, error) {
	c, err := scanCategory(d.sql.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Category{}, NotFoundError{Kind: "category", ID: id}
	}
	return c, err
}

func (d *DB) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	id, err := newRandomID(prefixCategory)
	if err != nil {
		return model.Category{}, err
	}
	c := model.Category{ID: id, Name: strings.TrimSpace(name)}
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO categories (id, name, seq) VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM categories))`,
		c.ID, c.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Category{}, ErrDuplicate
		}
		return model.Category{}, err
	}
	return c, nil
}

func (d *DB) UpdateCategory(ctx context.Context, id, name string) (model.Category, error) {
	res, err := d.sql.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, strings.TrimSpace(name), id)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Category{}, ErrDuplicate
		}
		return model.Category{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Category{}, NotFoundError{Kind: "category", ID: id}
	}
	return model.Category{ID: id, Name: strings.TrimSpace(name)}, nil
}

// DeleteCategory refuses with ErrInUse while products still reference the category.
func (d *DB) DeleteCategory(ctx context.Context, id string) (model.Category, error) {
	c, err := d.Category(ctx, id)
	if err != nil {
		return model.Category{}, err
	}
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		if isForeignKeyViolation(err) {
			return model.Category{}, ErrInUse
		}
		return model.Category{}, err
	}
	return c, nil
}
