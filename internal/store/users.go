package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/zapuscina/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountRole is returned when a stored account would get a role
	// other than admin or staff. Bidders never have stored accounts.
	ErrAccountRole = errors.New("stored accounts must be admin or staff")
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// queryUser returns the first matching user, or nil.
func queryUser(ctx context.Context, db *sql.DB, what, where string, args ...any) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", what, err)
	}
	return u, nil
}

// CreateUser stores an admin or staff account.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.User, error) {
	if !model.AccountRole(role) {
		return nil, ErrAccountRole
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading new user id: %w", err)
	}
	return GetUser(ctx, db, id)
}

// GetUser returns the account with the given id, deleted or not, or nil.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	return queryUser(ctx, db, "user", `WHERE id = ?`, id)
}

// GetUserByUsername returns the account signed in under username, or nil.
// An active account wins over soft-deleted ones with the same name; a
// soft-deleted match is still returned so sign-in can tell the difference.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	return queryUser(ctx, db, "user by username",
		`WHERE username = ? ORDER BY deleted_at IS NOT NULL, id DESC LIMIT 1`, username)
}

// ListUsers returns active accounts, admins first.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL
		 ORDER BY CASE role WHEN 'admin' THEN 0 ELSE 1 END, username, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// execActive runs an update against one active account and reports
// ErrUserNotFound when nothing matched.
func execActive(ctx context.Context, db *sql.DB, what, set string, id int64, args ...any) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET `+set+` WHERE id = ? AND deleted_at IS NULL`,
		append(args, id)...,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUser changes an account's role.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, role string) error {
	if !model.AccountRole(role) {
		return ErrAccountRole
	}
	return execActive(ctx, db, "updating user role", `role = ?`, id, role)
}

// UpdateUserPassword replaces an account's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	return execActive(ctx, db, "updating user password", `password_hash = ?`, id, passwordHash)
}

// DeleteUser soft-deletes an account. Items it owns in the record store
// are left alone.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	return execActive(ctx, db, "deleting user", `deleted_at = CURRENT_TIMESTAMP`, id)
}
