package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/google/uuid"
)

var ErrInvalidMetadata = errors.New("metadata is not valid json")

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 100
)

// SendMessage implements core.ChatStore. The sender must be a member of the room.
func (s *Store) SendMessage(ctx context.Context, d domain.MessageDraft) (*domain.Message, error) {
	if d.Type == "" {
		d.Type = domain.MessageText
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	ids, err := memberIDs(ctx, s.db, d.RoomID)
	if err != nil {
		return nil, err
	}
	if !domain.ContainsUser(ids, d.SenderID) {
		return nil, domain.ErrNotMember
	}
	var content *string
	if d.Content != "" {
		content = &d.Content
	}
	return s.insertMessage(ctx, d.RoomID, d.SenderID, content, d.Type, d.Metadata)
}

// SaveCallHistory implements core.ChatStore. It records a call-history message
// and announces it like any other message.
func (s *Store) SaveCallHistory(ctx context.Context, room domain.RoomID, user domain.UserID, status domain.CallStatus) (*domain.Message, error) {
	meta, err := json.Marshal(struct {
		CallStatus domain.CallStatus `json:"call_status"`
	}{status})
	if err != nil {
		return nil, err
	}
	return s.insertMessage(ctx, room, user, nil, domain.MessageCallHistory, meta)
}

func (s *Store) insertMessage(ctx context.Context, room domain.RoomID, sender domain.UserID, content *string, typ domain.MessageType, meta json.RawMessage) (*domain.Message, error) {
	if len(meta) > 0 && !json.Valid(meta) {
		return nil, ErrInvalidMetadata
	}
	msg := &domain.Message{
		ID:        uuid.NewString(),
		RoomID:    room,
		SenderID:  sender,
		Content:   content,
		Type:      typ,
		Metadata:  meta,
		CreatedAt: s.nowMillis(),
		Files:     []domain.File{},
	}

	var metaCol sql.NullString
	if len(meta) > 0 && string(meta) != "null" {
		metaCol = sql.NullString{String: string(meta), Valid: true}
	} else {
		msg.Metadata = nil
	}

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, content, type, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, string(room), string(sender), content, string(typ), metaCol, msg.CreatedAt,
	)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.publish(core.MessageCreated{RoomID: room, Message: msg})
	return msg, nil
}

// History returns up to limit messages older than before (unix ms, 0 = now),
// oldest first. The reader must be a member of the room.
func (s *Store) History(ctx context.Context, room domain.RoomID, reader domain.UserID, before int64, limit int) ([]*domain.Message, error) {
	ids, err := memberIDs(ctx, s.db, room)
	if err != nil {
		return nil, err
	}
	if !domain.ContainsUser(ids, reader) {
		return nil, domain.ErrNotMember
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if before <= 0 {
		before = s.nowMillis() + 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, content, type, metadata, created_at FROM messages
		WHERE room_id = ? AND created_at < ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, string(room), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m := &domain.Message{RoomID: room, Files: []domain.File{}}
		var sender, typ string
		var content, meta sql.NullString
		if err := rows.Scan(&m.ID, &sender, &content, &typ, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SenderID, m.Type = domain.UserID(sender), domain.MessageType(typ)
		if content.Valid {
			c := content.String
			m.Content = &c
		}
		if meta.Valid {
			m.Metadata = json.RawMessage(meta.String)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
