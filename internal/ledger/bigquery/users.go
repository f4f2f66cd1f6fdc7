package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/domain"
)

// CreateUser implements ledger.UserStore. The insert only happens when no
// user holds the username or email, case-insensitively.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	table := s.table(usersTable)
	affected, err := s.exec(ctx, `
		INSERT INTO `+table+` (user_id, username, email, password_hash, created_ts)
		SELECT @user_id, @username, NULLIF(@email, ''), @password_hash, @created_ts
		FROM UNNEST([1])
		WHERE NOT EXISTS (
			SELECT 1 FROM `+table+`
			WHERE LOWER(username) = LOWER(@username)
			   OR (@email != '' AND LOWER(email) = LOWER(@email))
		)`,
		bigquery.QueryParameter{Name: "user_id", Value: u.ID},
		bigquery.QueryParameter{Name: "username", Value: u.Username},
		bigquery.QueryParameter{Name: "email", Value: u.Email},
		bigquery.QueryParameter{Name: "password_hash", Value: u.PasswordHash},
		bigquery.QueryParameter{Name: "created_ts", Value: u.CreatedAt.UTC()},
	)
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	if affected != 0 {
		return nil
	}

	if _, err := s.GetUserByUsername(ctx, u.Username); err == nil {
		return &domain.ConflictError{Reason: "username already registered"}
	}
	return &domain.ConflictError{Reason: "email already registered"}
}

// GetUser implements ledger.UserStore.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "user_id = @key", id, id)
}

// GetUserByUsername implements ledger.UserStore.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, "LOWER(username) = LOWER(@key)", username, username)
}

func (s *Store) getUser(ctx context.Context, where, key, label string) (*domain.User, error) {
	rows, err := readAll[userRow](ctx, s.query(`
		SELECT user_id, username, email, password_hash, created_ts
		FROM `+s.table(usersTable)+`
		WHERE `+where+`
		LIMIT 1`,
		bigquery.QueryParameter{Name: "key", Value: key},
	))
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.NotFoundError{Resource: "user", ID: label}
	}
	u := rows[0].toDomain()
	return &u, nil
}
