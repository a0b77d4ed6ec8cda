package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkeye/Messzola/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

func (s *Store) CreateUser(ctx context.Context, displayName string) (*domain.User, error) {
	u, err := domain.NewUser(displayName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, created_at) VALUES (?, ?, ?)`,
		string(u.ID), u.DisplayName, s.nowMillis(),
	); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	u := &domain.User{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT display_name FROM users WHERE id = ?`, string(id)).Scan(&u.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
