package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"casetrack/internal/core"
)

func (r *Repository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)",
		u.Username, u.Email, u.PasswordHash, string(u.Role))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, core.ErrDuplicateEmail
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	slog.InfoContext(ctx, "User created", "id", id, "email", u.Email, "role", u.Role)
	return id, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, role, created_at FROM users WHERE email = ?", email)
	return scanUser(row)
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, role, created_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

func scanUser(row rowScanner) (core.User, error) {
	var u core.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = core.Role(role)
	return u, nil
}

// SeedAdmin creates the bootstrap admin account if the email is not yet
// registered. Called at startup when ADMIN_EMAIL/ADMIN_PASSWORD are set.
func (r *Repository) SeedAdmin(ctx context.Context, username, email, passwordHash string) error {
	_, err := r.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	_, err = r.CreateUser(ctx, core.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         core.RoleAdmin,
	})
	return err
}
