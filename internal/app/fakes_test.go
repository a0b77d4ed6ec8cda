package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	frames   []core.Frame
	pings    int
	closed   bool
	rejected int
	full     bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	c.pings++
	return nil
}

func (c *fakeConn) Reject(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected = code
	c.closed = true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// tags returns the "t" field of every frame received so far.
func (c *fakeConn) tags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var env struct {
			T string `json:"t"`
		}
		_ = json.Unmarshal(f, &env)
		out = append(out, env.T)
	}
	return out
}

// fakeAuth accepts tokens of the form "token-<user id>".
type fakeAuth struct{}

func (fakeAuth) Verify(_ context.Context, token string) (*domain.User, error) {
	var id string
	if _, err := fmt.Sscanf(token, "token-%s", &id); err != nil || id == "" {
		return nil, errors.New("bad signature")
	}
	return &domain.User{ID: domain.UserID(id), DisplayName: id}, nil
}

type countingMembership struct {
	mu    sync.Mutex
	calls int
	rooms map[domain.RoomID][]domain.UserID
}

func (m *countingMembership) MemberIDs(_ context.Context, room domain.RoomID) ([]domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	ids, ok := m.rooms[room]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return ids, nil
}
