package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCategory_ValidateRequiresName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "   ", "\t"} {
		if err := (Category{Name: name}).Validate(); err == nil {
			t.Fatalf("expected validation error for %q", name)
		}
	}
	if err := (Category{Name: "Shoes"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCategory_WireUsesUnderscoreID(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Category{ID: "cat-abc", Name: "Shoes"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(b); got != `{"_id":"cat-abc","name":"Shoes"}` {
		t.Fatalf("unexpected wire shape: %s", got)
	}

	// Creates omit the id entirely.
	b, _ = json.Marshal(Category{Name: "Hats"})
	if strings.Contains(string(b), "_id") {
		t.Fatalf("expected create payload without id, got %s", b)
	}
}

func TestWithID_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	c := Category{ID: "tmp-1", Name: "Shoes"}
	d := c.WithID("cat-1")
	if c.ID != "tmp-1" || d.ID != "cat-1" || d.Name != "Shoes" {
		t.Fatalf("unexpected ids: c=%q d=%q", c.ID, d.ID)
	}
}

func TestProduct_Validate(t *testing.T) {
	t.Parallel()

	ok := Product{Name: "Runner", Brand: "Acme", Description: "Fast", Category: "cat-1", Price: 10, Quantity: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Product)
		want   string
	}{
		{"name", func(p *Product) { p.Name = "" }, "Name is required"},
		{"brand", func(p *Product) { p.Brand = " " }, "Brand is required"},
		{"description", func(p *Product) { p.Description = "" }, "Description is required"},
		{"category", func(p *Product) { p.Category = "" }, "Category is required"},
		{"price", func(p *Product) { p.Price = -1 }, "Price must not be negative"},
		{"quantity", func(p *Product) { p.Quantity = -2 }, "Quantity must not be negative"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := ok
			tt.mutate(&p)
			err := p.Validate()
			if err == nil || err.Error() != tt.want {
				t.Fatalf("want %q, got %v", tt.want, err)
			}
		})
	}
}

func TestUser_DisplayNameFallsBackToEmail(t *testing.T) {
	t.Parallel()

	if got := (User{Email: "a@b.c"}).DisplayName(); got != "a@b.c" {
		t.Fatalf("want email fallback, got %q", got)
	}
	if err := (User{Username: "ann", Email: "nope"}).Validate(); err == nil {
		t.Fatalf("expected invalid email error")
	}
}

func TestRegistration_Validate(t *testing.T) {
	t.Parallel()

	if err := (Registration{Username: "ann", Email: "ann@example.com", Password: "123"}).Validate(); err == nil {
		t.Fatalf("expected short password error")
	}
	if err := (Registration{Username: "ann", Email: "ann@example.com", Password: "123456"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Credentials{Email: "ann@example.com"}).Validate(); err == nil {
		t.Fatalf("expected missing password error")
	}
}
