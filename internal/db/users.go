package db

import (
	"context"
	"fmt"
)

// User is a row of the users table.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	FullName     string
	CreatedAt    int64
}

const userColumns = "id, username, password_hash, fullname, created_at"

// CreateUser inserts a user. A taken username yields an error for which
// IsUniqueViolation is true.
func (q *Queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.FullName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByUsername returns sql.ErrNoRows when no user has that username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return q.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetUserByID returns sql.ErrNoRows when the id is unknown.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return q.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (q *Queries) getUser(ctx context.Context, query string, arg string) (User, error) {
	var u User
	err := q.q.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.CreatedAt)
	return u, err
}
