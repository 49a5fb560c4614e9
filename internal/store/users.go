package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"shopadmin/internal/model"
)

// UserRecord is a user row including its password hash. It never leaves the server.
type UserRecord struct {
	model.User
	PasswordHash string
}

const userColumns = `id, username, email, password_hash, is_admin`

func scanUser(rows interface{ Scan(...any) error }) (UserRecord, error) {
	var u UserRecord
	var admin int
	if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &admin); err != nil {
		return UserRecord{}, err
	}
	u.IsAdmin = admin != 0
	return u, nil
}

// CreateUser inserts a user. The first user ever created becomes an admin.
func (d *DB) CreateUser(ctx context.Context, username, email, passwordHash string) (UserRecord, error) {
	id, err := newRandomID(prefixUser)
	if err != nil {
		return UserRecord{}, err
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return UserRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return UserRecord{}, err
	}
	u := UserRecord{
		User: model.User{
			ID:       id,
			Username: strings.TrimSpace(username),
			Email:    strings.ToLower(strings.TrimSpace(email)),
			IsAdmin:  n == 0,
		},
		PasswordHash: passwordHash,
	}
	now := unixMS(d.now())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_admin, created_at_unixms, updated_at_unixms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, boolToInt(u.IsAdmin), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return UserRecord{}, ErrDuplicate
		}
		return UserRecord{}, err
	}
	return u, tx.Commit()
}

func (d *DB) UserByID(ctx context.Context, id string) (UserRecord, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, NotFoundError{Kind: "user", ID: id}
	}
	return u, err
}

func (d *DB) UserByEmail(ctx context.Context, email string) (UserRecord, error) {
	email = strings.TrimSpace(email)
	u, err := scanUser(d.sql.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, NotFoundError{Kind: "user", ID: email}
	}
	return u, err
}

func (d *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	recs, err := queryRows(ctx, d.sql, func(r *sql.Rows) (UserRecord, error) { return scanUser(r) },
		`SELECT `+userColumns+` FROM users ORDER BY created_at_unixms, id`)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.User)
	}
	return out, nil
}

// UserPatch holds optional field changes; nil fields are left alone.
type UserPatch struct {
	Username     *string
	Email        *string
	IsAdmin      *bool
	PasswordHash *string
}

func (d *DB) UpdateUser(ctx context.Context, id string, p UserPatch) (UserRecord, error) {
	u, err := d.UserByID(ctx, id)
	if err != nil {
		return UserRecord{}, err
	}
	if p.Username != nil && strings.TrimSpace(*p.Username) != "" {
		u.Username = strings.TrimSpace(*p.Username)
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) != "" {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
	if p.PasswordHash != nil && *p.PasswordHash != "" {
		u.PasswordHash = *p.PasswordHash
	}
	_, err = d.sql.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, is_admin = ?, password_hash = ?, updated_at_unixms = ? WHERE id = ?`,
		u.Username, u.Email, boolToInt(u.IsAdmin), u.PasswordHash, unixMS(d.now()), id)
	if err != nil {
		if isUniqueViolation(err) {
			return UserRecord{}, ErrDuplicate
		}
		return UserRecord{}, err
	}
	return u, nil
}

func (d *DB) DeleteUser(ctx context.Context, id string) (model.User, error) {
	u, err := d.UserByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return model.User{}, err
	}
	return u.User, nil
}
