package model

import (
	"errors"
	"strings"
	"time"
)

// Entity is the id-keyed shape shared by every admin resource. Identity is by id only;
// two entities with the same id are the same entity regardless of their fields.
type Entity interface {
	EntityID() string
	DisplayName() string
	Validate() error
}

// Record is an Entity that can be re-keyed, which is how temporary ids are assigned to
// optimistic creates and swapped for server ids on commit.
type Record[T any] interface {
	Entity
	WithID(id string) T
}

// Resource collection names as they appear in /api/<resource>.
const (
	ResourceCategories = "category"
	ResourceProducts   = "products"
	ResourceUsers      = "users"
)

type Category struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

func (c Category) EntityID() string    { return c.ID }
func (c Category) DisplayName() string { return c.Name }

func (c Category) WithID(id string) Category {
	c.ID = id
	return c
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("Category name is required")
	}
	return nil
}

type Product struct {
	ID           string    `json:"_id,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Brand        string    `json:"brand"`
	Image        string    `json:"image,omitempty"`
	Category     string    `json:"category"`
	Price        float64   `json:"price"`
	Quantity     int       `json:"quantity"`
	CountInStock int       `json:"countInStock"`
	Rating       float64   `json:"rating"`
	NumReviews   int       `json:"numReviews"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

func (p Product) EntityID() string    { return p.ID }
func (p Product) DisplayName() string { return p.Name }

func (p Product) WithID(id string) Product {
	p.ID = id
	return p
}

// Validate mirrors the required-field rules of the product form.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.New("Name is required")
	case strings.TrimSpace(p.Brand) == "":
		return errors.New("Brand is required")
	case strings.TrimSpace(p.Description) == "":
		return errors.New("Description is required")
	case strings.TrimSpace(p.Category) == "":
		return errors.New("Category is required")
	case p.Price < 0:
		return errors.New("Price must not be negative")
	case p.Quantity < 0:
		return errors.New("Quantity must not be negative")
	}
	return nil
}

type User struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (u User) EntityID() string { return u.ID }

func (u User) DisplayName() string {
	if strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return u.Email
}

func (u User) WithID(id string) User {
	u.ID = id
	return u
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("Username is required")
	}
	return validateEmail(u.Email)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	if err := validateEmail(c.Email); err != nil {
		return err
	}
	if c.Password == "" {
		return errors.New("Password is required")
	}
	return nil
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return errors.New("Username is required")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Password) < 6 {
		return errors.New("Password must be at least 6 characters")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("Email is required")
	}
	if !strings.Contains(email, "@") {
		return errors.New("Email is invalid")
	}
	return nil
}
