package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "shop.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateUser_FirstUserIsAdmin(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.CreateUser(ctx, "ada", "Ada@Example.com ", "h1")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !first.IsAdmin || first.Email != "ada@example.com" {
		t.Fatalf("unexpected first user: %#v", first)
	}
	second, err := db.CreateUser(ctx, "bob", "bob@example.com", "h2")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if second.IsAdmin {
		t.Fatalf("expected second user to be a regular user")
	}
	if _, err := db.CreateUser(ctx, "ada2", "ADA@example.com", "h3"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	got, err := db.UserByEmail(ctx, "ada@example.com")
	if err != nil || got.ID != first.ID || got.PasswordHash != "h1" {
		t.Fatalf("UserByEmail: %v %#v", err, got)
	}
	users, err := db.ListUsers(ctx)
	if err != nil || len(users) != 2 || users[0].ID != first.ID {
		t.Fatalf("ListUsers: %v %#v", err, users)
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	u, _ := db.CreateUser(ctx, "ada", "ada@example.com", "h1")

	name := "Ada L."
	admin := false
	empty := ""
	got, err := db.UpdateUser(ctx, u.ID, UserPatch{Username: &name, IsAdmin: &admin, PasswordHash: &empty})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Username != "Ada L." || got.IsAdmin || got.PasswordHash != "h1" {
		t.Fatalf("unexpected update: %#v", got)
	}

	if _, err := db.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := db.UserByID(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
	if _, err := db.UpdateUser(ctx, u.ID, UserPatch{}); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}
