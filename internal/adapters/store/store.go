// Package store is the SQLite-backed identity, membership and message store.
// Committed changes are announced through a core.EventSink.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	is_group   INTEGER NOT NULL DEFAULT 0,
	owner_id   TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role      TEXT NOT NULL DEFAULT 'member',
	joined_at INTEGER NOT NULL,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	sender_id  TEXT NOT NULL,
	content    TEXT,
	type       TEXT NOT NULL DEFAULT 'text',
	metadata   TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at);
CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);
`

// Store implements core.Membership and core.ChatStore.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	sink core.EventSink
	now  func() time.Time
}

// Open opens or creates the database at path. sink may be nil.
func Open(path string, sink core.EventSink) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps the per-connection pragmas below in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Info().Str("module", "store").Str("path", path).Msg("database ready")
	return &Store{db: db, sink: sink, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) publish(ev core.Event) {
	if s.sink != nil {
		s.sink.Publish(ev)
	}
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}
