package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrEmptyGroupName = errors.New("group name is required")
	ErrSelfDirect     = errors.New("cannot open a direct room with yourself")
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateGroup creates a group owned by owner with the given extra members.
func (s *Store) CreateGroup(ctx context.Context, owner domain.UserID, name string, members []domain.UserID) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyGroupName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.RoomID(uuid.NewString())
	now := s.nowMillis()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rooms (id, name, is_group, owner_id, created_at) VALUES (?, ?, 1, ?, ?)`,
			string(id), name, string(owner), now,
		); err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		if err := addMember(ctx, tx, id, owner, domain.RoleOwner, now); err != nil {
			return err
		}
		for _, m := range members {
			if m == owner {
				continue
			}
			if err := addMember(ctx, tx, id, m, domain.RoleMember, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadRoom(ctx, s.db, id)
}

// EnsureDirectRoom returns the one-to-one room of a and b, creating it on first use.
func (s *Store) EnsureDirectRoom(ctx context.Context, a, b domain.UserID) (*domain.Room, error) {
	if a == b {
		return nil, ErrSelfDirect
	}
	if _, err := s.GetUser(ctx, b); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id FROM rooms r
		JOIN room_members ma ON ma.room_id = r.id AND ma.user_id = ?
		JOIN room_members mb ON mb.room_id = r.id AND mb.user_id = ?
		WHERE r.is_group = 0
		LIMIT 1`, string(a), string(b)).Scan(&existing)
	switch {
	case err == nil:
		return s.loadRoom(ctx, s.db, domain.RoomID(existing))
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("find direct room: %w", err)
	}

	id := domain.RoomID(uuid.NewString())
	now := s.nowMillis()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rooms (id, is_group, created_at) VALUES (?, 0, ?)`, string(id), now,
		); err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		if err := addMember(ctx, tx, id, a, domain.RoleMember, now); err != nil {
			return err
		}
		return addMember(ctx, tx, id, b, domain.RoleMember, now)
	})
	if err != nil {
		return nil, err
	}
	return s.loadRoom(ctx, s.db, id)
}

func (s *Store) Room(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return s.loadRoom(ctx, s.db, id)
}

// MemberIDs implements core.Membership.
func (s *Store) MemberIDs(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	return memberIDs(ctx, s.db, room)
}

// AddMembers lets the owner add users to a group and announces the new member list.
func (s *Store) AddMembers(ctx context.Context, room domain.RoomID, owner domain.UserID, ids []domain.UserID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.loadRoom(ctx, s.db, room)
	if err != nil {
		return nil, err
	}
	if !r.IsGroup {
		return nil, domain.ErrNotGroup
	}
	if r.OwnerID != owner {
		return nil, domain.ErrNotOwner
	}
	now := s.nowMillis()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO room_members (room_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
				string(room), string(id), string(domain.RoleMember), now,
			); err != nil {
				return fmt.Errorf("add member %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r, err = s.loadRoom(ctx, s.db, room)
	if err != nil {
		return nil, err
	}
	s.publish(core.MembersAdded{Room: r, MemberIDs: r.MemberIDs()})
	return r, nil
}

// Disband deletes a group with its messages. Former members are announced.
func (s *Store) Disband(ctx context.Context, room domain.RoomID, owner domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.loadRoom(ctx, s.db, room)
	if err != nil {
		return err
	}
	if !r.IsGroup {
		return domain.ErrNotGroup
	}
	if r.OwnerID != owner {
		return domain.ErrNotOwner
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, string(room)); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	s.publish(core.RoomDisbanded{RoomID: room, MemberIDs: r.MemberIDs()})
	return nil
}

// LeaveRoom removes a non-owner member from a group.
func (s *Store) LeaveRoom(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.loadRoom(ctx, s.db, room)
	if err != nil {
		return err
	}
	if !r.IsGroup {
		return domain.ErrNotGroup
	}
	if r.OwnerID == user {
		return domain.ErrOwnerLeave
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ? AND user_id = ?`, string(room), string(user))
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotMember
	}
	r, err = s.loadRoom(ctx, s.db, room)
	if err != nil {
		return err
	}
	s.publish(core.MemberLeft{Room: r, UserID: user})
	return nil
}

// RoomsOf lists the rooms user belongs to, newest first.
func (s *Store) RoomsOf(ctx context.Context, user domain.UserID) ([]*domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.created_at DESC`, string(user))
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var ids []domain.RoomID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, domain.RoomID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Room, 0, len(ids))
	for _, id := range ids {
		r, err := s.loadRoom(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) loadRoom(ctx context.Context, q querier, id domain.RoomID) (*domain.Room, error) {
	r := &domain.Room{ID: id}
	var isGroup int
	var owner sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT name, is_group, owner_id, created_at FROM rooms WHERE id = ?`, string(id),
	).Scan(&r.Name, &isGroup, &owner, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	r.IsGroup = isGroup == 1
	r.OwnerID = domain.UserID(owner.String)

	rows, err := q.QueryContext(ctx,
		`SELECT user_id, role, joined_at FROM room_members WHERE room_id = ? ORDER BY joined_at, rowid`, string(id))
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()
	r.Members = []domain.Member{}
	for rows.Next() {
		var m domain.Member
		var uid, role string
		if err := rows.Scan(&uid, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.UserID, m.Role = domain.UserID(uid), domain.Role(role)
		r.Members = append(r.Members, m)
	}
	return r, rows.Err()
}

func memberIDs(ctx context.Context, q querier, room domain.RoomID) ([]domain.UserID, error) {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, string(room)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup room: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT user_id FROM room_members WHERE room_id = ? ORDER BY joined_at, rowid`, string(room))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	ids := []domain.UserID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, domain.UserID(id))
	}
	return ids, rows.Err()
}

func addMember(ctx context.Context, tx *sql.Tx, room domain.RoomID, user domain.UserID, role domain.Role, at int64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		string(room), string(user), string(role), at,
	); err != nil {
		return fmt.Errorf("add member %s: %w", user, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
