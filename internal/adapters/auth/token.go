// Package auth issues and verifies the bearer tokens clients present on the
// websocket handshake and REST calls.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Messzola/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrEmptySecret = errors.New("token secret is empty")

type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// TokenService signs HS256 tokens whose subject is the user id.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *TokenService) Issue(u *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Name: u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify implements core.Authenticator.
func (s *TokenService) Verify(_ context.Context, token string) (*domain.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &domain.User{ID: domain.UserID(claims.Subject), DisplayName: claims.Name}, nil
}
