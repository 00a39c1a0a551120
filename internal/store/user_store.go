package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/smarttask/internal/model"
)

// CreateUser inserts a user and sets its generated ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *model.User) error {
	if strings.TrimSpace(user.Username) == "" {
		return fmt.Errorf("username must not be empty")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating user %s: %w", user.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading id of user %s: %w", user.Username, err)
	}
	user.ID = id
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := sqlx.GetContext(ctx, s.q, &user, "SELECT * FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := sqlx.GetContext(ctx, s.q, &user, "SELECT * FROM users WHERE username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", username, err)
	}
	return &user, nil
}

// UsernameExists reports whether a user with username exists.
func (s *SQLiteStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", username)
}

// EmailExists reports whether a user with email exists.
func (s *SQLiteStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", email)
}

func (s *SQLiteStore) exists(ctx context.Context, query string, arg string) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, s.q, &count, query, arg); err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	return count > 0, nil
}
