// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen      = 36
	MaxDisplayNameLen = 64
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type UserID string

// User is the identity resolved from a bearer token.
type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(displayName string) (*User, error) {
	u := &User{ID: UserID(uuid.NewString())}
	if err := u.SetDisplayName(displayName); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	u.DisplayName = name
	return nil
}
