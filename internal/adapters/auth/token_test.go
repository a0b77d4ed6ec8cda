package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Messzola/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	s, err := NewTokenService("s3cret", time.Hour)
	require.NoError(t, err)

	token, err := s.Issue(&domain.User{ID: "u1", DisplayName: "Ann"})
	require.NoError(t, err)

	u, err := s.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), u.ID)
	assert.Equal(t, "Ann", u.DisplayName)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	a, _ := NewTokenService("one", time.Hour)
	b, _ := NewTokenService("two", time.Hour)

	token, err := a.Issue(&domain.User{ID: "u1"})
	require.NoError(t, err)

	_, err = b.Verify(context.Background(), token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s, _ := NewTokenService("s3cret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.Issue(&domain.User{ID: "u1"})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(context.Background(), token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	s, _ := NewTokenService("s3cret", time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestEmptySecret(t *testing.T) {
	_, err := NewTokenService("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
