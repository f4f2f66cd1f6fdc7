package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var errBadCredentials = &domain.AuthError{Reason: "incorrect username or password"}

// Service registers users and logs them in.
type Service struct {
	users  ledger.UserStore
	tokens *TokenIssuer
	cost   int
}

// NewService creates a Service hashing with bcrypt's default cost.
func NewService(users ledger.UserStore, tokens *TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Register creates a user with a hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if l := len(username); l < 3 || l > 50 {
		return nil, &domain.ValidationError{Field: "username", Reason: "must be 3 to 50 characters"}
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, &domain.ValidationError{Field: "email", Reason: "is not a valid address"}
		}
	}
	if len(password) < minPasswordLength {
		return nil, &domain.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	return u, nil
}

// Login checks credentials and issues a token. Unknown users and wrong
// passwords fail the same way.
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if domain.IsNotFound(err) {
			return Token{}, errBadCredentials
		}
		return Token{}, fmt.Errorf("Login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Token{}, errBadCredentials
		}
		return Token{}, fmt.Errorf("Login: compare password: %w", err)
	}
	return s.tokens.Issue(*u)
}

// Authenticate verifies a bearer token and returns the user id it names.
func (s *Service) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
