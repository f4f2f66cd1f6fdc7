package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// CreateUser implements ledger.UserStore.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, nullString(u.Email), u.PasswordHash, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		if strings.Contains(err.Error(), "users.email") {
			return &domain.ConflictError{Reason: "email already registered"}
		}
		return &domain.ConflictError{Reason: "username already registered"}
	}
	if err != nil {
		return fmt.Errorf("CreateUser: insert: %w", err)
	}
	return nil
}

// GetUser implements ledger.UserStore.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row, id)
}

// GetUserByUsername implements ledger.UserStore.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row, username)
}

func scanUser(row *sql.Row, key string) (*domain.User, error) {
	var (
		u       domain.User
		email   sql.NullString
		created string
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "user", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Email = email.String
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("scan user: created_at: %w", err)
	}
	return &u, nil
}
