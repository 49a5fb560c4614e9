package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"shopadmin/internal/model"
)

// Resource is the typed client for one collection under /api/<name>.
type Resource[T any] struct {
	c    *Client
	name string
}

func NewResource[T any](c *Client, name string) *Resource[T] {
	return &Resource[T]{c: c, name: strings.Trim(name, "/")}
}

func (r *Resource[T]) Name() string { return r.name }

func (r *Resource[T]) path(id string) string {
	if id == "" {
		return "/api/" + r.name
	}
	return "/api/" + r.name + "/" + url.PathEscape(id)
}

func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := r.c.do(ctx, http.MethodGet, r.path(""), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodGet, r.path(id), nil, &out)
	return out, err
}

func (r *Resource[T]) Create(ctx context.Context, payload T) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPost, r.path(""), payload, &out)
	return out, err
}

func (r *Resource[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPut, r.path(id), payload, &out)
	return out, err
}

// Remove deletes id. The returned entity is whatever the server echoed back, which may
// be empty.
func (r *Resource[T]) Remove(ctx context.Context, id string) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodDelete, r.path(id), nil, &out)
	return out, err
}

func (c *Client) Categories() *Resource[model.Category] {
	return NewResource[model.Category](c, model.ResourceCategories)
}

func (c *Client) Products() *Resource[model.Product] {
	return NewResource[model.Product](c, model.ResourceProducts)
}

func (c *Client) Users() *Resource[model.User] {
	return NewResource[model.User](c, model.ResourceUsers)
}
