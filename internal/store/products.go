package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"shopadmin/internal/model"
)

const productColumns = `id, name, description, brand, image, category_id, price, quantity,
	count_in_stock, rating, num_reviews, created_at_unixms, updated_at_unixms`

func scanProduct(r interface{ Scan(...any) error }) (model.Product, error) {
	var p model.Product
	var created, updated int64
	err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.Image, &p.Category, &p.Price,
		&p.Quantity, &p.CountInStock, &p.Rating, &p.NumReviews, &created, &updated)
	if err != nil {
		return model.Product{}, err
	}
	p.CreatedAt = fromUnixMS(created)
	p.UpdatedAt = fromUnixMS(updated)
	return p, nil
}

func (d *DB) ListProducts(ctx context.Context) ([]model.Product, error) {
	return queryRows(ctx, d.sql, func(r *sql.Rows) (model.Product, error) { return scanProduct(r) },
		`SELECT `+productColumns+` FROM products ORDER BY created_at_unixms, id`)
}

func (d *DB) Product(ctx context.Context, id string) (model.Product, error) {
	p, err := scanProduct(d.sql.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, NotFoundError{Kind: "product", ID: id}
	}
	return p, err
}

// CreateProduct inserts p under a new id. The referenced category must exist.
func (d *DB) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	id, err := newRandomID(prefixProduct)
	if err != nil {
		return model.Product{}, err
	}
	if _, err := d.Category(ctx, p.Category); err != nil {
		return model.Product{}, err
	}
	p.ID = id
	p.Name = strings.TrimSpace(p.Name)
	p.CreatedAt = fromUnixMS(unixMS(d.now()))
	p.UpdatedAt = p.CreatedAt
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Brand, p.Image, p.Category, p.Price, p.Quantity,
		p.CountInStock, p.Rating, p.NumReviews, unixMS(p.CreatedAt), unixMS(p.UpdatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.Product{}, NotFoundError{Kind: "category", ID: p.Category}
		}
		return model.Product{}, err
	}
	return p, nil
}

// UpdateProduct replaces the editable fields of id. Ratings and review counts are kept.
func (d *DB) UpdateProduct(ctx context.Context, id string, p model.Product) (model.Product, error) {
	cur, err := d.Product(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if _, err := d.Category(ctx, p.Category); err != nil {
		return model.Product{}, err
	}
	cur.Name = strings.TrimSpace(p.Name)
	cur.Description = p.Description
	cur.Brand = p.Brand
	cur.Category = p.Category
	cur.Price = p.Price
	cur.Quantity = p.Quantity
	cur.CountInStock = p.CountInStock
	if p.Image != "" {
		cur.Image = p.Image
	}
	cur.UpdatedAt = fromUnixMS(unixMS(d.now()))
	_, err = d.sql.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, brand = ?, image = ?, category_id = ?, price = ?,
		 quantity = ?, count_in_stock = ?, updated_at_unixms = ? WHERE id = ?`,
		cur.Name, cur.Description, cur.Brand, cur.Image, cur.Category, cur.Price,
		cur.Quantity, cur.CountInStock, unixMS(cur.UpdatedAt), id)
	if err != nil {
		return model.Product{}, err
	}
	return cur, nil
}

func (d *DB) DeleteProduct(ctx context.Context, id string) (model.Product, error) {
	p, err := d.Product(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return model.Product{}, err
	}
	return p, nil
}
