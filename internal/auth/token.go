// Package auth handles passwords, bearer tokens and the register/login flow.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "finance-analytics"

// Claims is the payload of an access token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Token is what a successful login returns.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. The secret must not be empty.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("NewTokenIssuer: secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("NewTokenIssuer: ttl must be positive, got %s", ttl)
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for u.
func (i *TokenIssuer) Issue(u domain.User) (Token, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("Issue: sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: expires.UTC()}, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
// Every failure is an *domain.AuthError.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.AuthError{Reason: "token expired"}
		}
		return nil, &domain.AuthError{Reason: "invalid token"}
	}
	if claims.Subject == "" {
		return nil, &domain.AuthError{Reason: "invalid token"}
	}
	return claims, nil
}
