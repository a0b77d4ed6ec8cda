package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Messzola/internal/app"
	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []map[string]any
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *fakeConn) Ping() error { return nil }

func (c *fakeConn) Reject(int, string) { c.Close() }

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// received returns frames of type t, ignoring the handshake.
func (c *fakeConn) received(t string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		if f["t"] == t {
			out = append(out, f)
		}
	}
	return out
}

// count returns the number of frames other than "connected".
func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f["t"] != core.TagConnected {
			n++
		}
	}
	return n
}

type fakeAuth struct{}

func (fakeAuth) Verify(_ context.Context, token string) (*domain.User, error) {
	id, ok := strings.CutPrefix(token, "token-")
	if !ok || id == "" {
		return nil, errors.New("bad token")
	}
	return &domain.User{ID: domain.UserID(id), DisplayName: strings.ToUpper(id)}, nil
}

type staticMembers map[domain.RoomID][]domain.UserID

func (m staticMembers) MemberIDs(_ context.Context, room domain.RoomID) ([]domain.UserID, error) {
	ids, ok := m[room]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return ids, nil
}

type historyRecord struct {
	Room   domain.RoomID
	User   domain.UserID
	Status domain.CallStatus
}

// fakeChat persists nothing and raises MessageCreated straight into the orchestrator.
type fakeChat struct {
	members    staticMembers
	orch       *Orchestrator
	historyErr error

	mu      sync.Mutex
	history []historyRecord
	seq     int
}

func (f *fakeChat) SendMessage(ctx context.Context, d domain.MessageDraft) (*domain.Message, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	ids, err := f.members.MemberIDs(ctx, d.RoomID)
	if err != nil {
		return nil, err
	}
	if !domain.ContainsUser(ids, d.SenderID) {
		return nil, domain.ErrNotMember
	}
	f.mu.Lock()
	f.seq++
	content := d.Content
	msg := &domain.Message{
		ID:        fmt.Sprintf("m%d", f.seq),
		RoomID:    d.RoomID,
		SenderID:  d.SenderID,
		Content:   &content,
		Type:      d.Type,
		CreatedAt: time.Now().UnixMilli(),
		Files:     []domain.File{},
	}
	f.mu.Unlock()
	f.orch.HandleEvent(ctx, core.MessageCreated{RoomID: d.RoomID, Message: msg})
	return msg, nil
}

func (f *fakeChat) SaveCallHistory(_ context.Context, room domain.RoomID, user domain.UserID, status domain.CallStatus) (*domain.Message, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, historyRecord{Room: room, User: user, Status: status})
	return &domain.Message{RoomID: room, SenderID: user, Type: domain.MessageCallHistory}, nil
}

func (f *fakeChat) records() []historyRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]historyRecord(nil), f.history...)
}

type harness struct {
	t    *testing.T
	orch *Orchestrator
	chat *fakeChat
	n    int
}

func newHarness(t *testing.T, members staticMembers) *harness {
	t.Helper()
	chat := &fakeChat{members: members}
	o := &Orchestrator{
		Registry: app.NewRegistry(fakeAuth{}, app.SimplePolicy{}, nil),
		Presence: app.NewPresence(),
		Members:  members,
		Chat:     chat,
	}
	o.Init()
	chat.orch = o
	return &harness{t: t, orch: o, chat: chat}
}

func (h *harness) connect(user string) *fakeConn {
	h.t.Helper()
	h.n++
	c := &fakeConn{id: fmt.Sprintf("%s-%d", user, h.n)}
	_, err := h.orch.Registry.Accept(context.Background(), c, "token-"+user)
	require.NoError(h.t, err)
	return c
}

func (h *harness) send(user, raw string) {
	h.t.Helper()
	in, err := core.Decode([]byte(raw))
	require.NoError(h.t, err)
	u := &domain.User{ID: domain.UserID(user)}
	h.orch.Dispatch(context.Background(), u, in)
}
