package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recordingSink) Publish(ev core.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingSink) last() core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func openTest(t *testing.T) (*Store, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	s, err := Open(filepath.Join(t.TempDir(), "data", "test.sqlite"), sink)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, sink
}

func users(t *testing.T, s *Store, names ...string) []domain.UserID {
	t.Helper()
	out := make([]domain.UserID, 0, len(names))
	for _, n := range names {
		u, err := s.CreateUser(context.Background(), n)
		require.NoError(t, err)
		out = append(out, u.ID)
	}
	return out
}

func TestCreateGroupAndMembers(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	ids := users(t, s, "ann", "bob", "cid")

	room, err := s.CreateGroup(ctx, ids[0], " team ", ids[1:])
	require.NoError(t, err)
	assert.Equal(t, "team", room.Name)
	assert.True(t, room.IsGroup)
	assert.Equal(t, ids[0], room.OwnerID)
	assert.Equal(t, domain.RoleOwner, room.Members[0].Role)

	members, err := s.MemberIDs(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, ids, members)

	_, err = s.MemberIDs(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestEnsureDirectRoomIsStable(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	ids := users(t, s, "ann", "bob")

	first, err := s.EnsureDirectRoom(ctx, ids[0], ids[1])
	require.NoError(t, err)
	second, err := s.EnsureDirectRoom(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, first.IsGroup)

	rooms, err := s.RoomsOf(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestSendMessagePublishesAndEnforcesMembership(t *testing.T) {
	s, sink := openTest(t)
	ctx := context.Background()
	ids := users(t, s, "ann", "bob", "eve")
	room, err := s.CreateGroup(ctx, ids[0], "team", ids[1:2])
	require.NoError(t, err)

	msg, err := s.SendMessage(ctx, domain.MessageDraft{RoomID: room.ID, SenderID: ids[1], Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageText, msg.Type)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hi", *msg.Content)
	assert.Equal(t, core.MessageCreated{RoomID: room.ID, Message: msg}, sink.last())

	_, err = s.SendMessage(ctx, domain.MessageDraft{RoomID: room.ID, SenderID: ids[2], Content: "let me in"})
	assert.ErrorIs(t, err, domain.ErrNotMember)

	_, err = s.SendMessage(ctx, domain.MessageDraft{RoomID: room.ID, SenderID: ids[0], Type: domain.MessageText})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestSaveCallHistory(t *testing.T) {
	s, sink := openTest(t)
	ctx := context.Background()
	ids := users(t, s, "ann", "bob")
	room, err := s.EnsureDirectRoom(ctx, ids[0], ids[1])
	require.NoError(t, err)

	msg, err := s.SaveCallHistory(ctx, room.ID, ids[0], domain.CallMissed)
	require.NoError(t, err)
	assert.Nil(t, msg.Content)
	assert.Equal(t, domain.MessageCallHistory, msg.Type)
	assert.JSONEq(t, `{"call_status":"missed"}`, string(msg.Metadata))
	assert.IsType(t, core.MessageCreated{}, sink.last())

	history, err := s.History(ctx, room.ID, ids[1], 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.JSONEq(t, `{"call_status":"missed"}`, string(history[0].Metadata))

	b, err := json.Marshal(history[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"content":null`)
	assert.Contains(t, string(b), `"files":[]`)
}

func TestHistoryPagesOldestFirst(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	ids := users(t, s, "ann", "bob")
	room, err := s.EnsureDirectRoom(ctx, ids[0], ids[1])
	require.NoError(t, err)

	clock := time.UnixMilli(1_000)
	s.now = func() time.Time { clock = clock.Add(time.Millisecond); return clock }
	for _, text := range []string{"one", "two", "three", "four"} {
		_, err := s.SendMessage(ctx, domain.MessageDraft{RoomID: room.ID, SenderID: ids[0], Content: text})
		require.NoError(t, err)
	}

	page, err := s.History(ctx, room.ID, ids[1], 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "three", *page[0].Content)
	assert.Equal(t, "four", *page[1].Content)

	older, err := s.History(ctx, room.ID, ids[1], page[0].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "one", *older[0].Content)

	_, err = s.History(ctx, room.ID, "stranger", 0, 10)
	assert.ErrorIs(t, err, domain.ErrNotMember)
}

func TestAddMembersDisbandLeave(t *testing.T) {
	s, sink := openTest(t)
	ctx := context.Background()
	ids := users(t, s, "ann", "bob", "cid")
	room, err := s.CreateGroup(ctx, ids[0], "team", nil)
	require.NoError(t, err)

	_, err = s.AddMembers(ctx, room.ID, ids[1], ids[2:])
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	updated, err := s.AddMembers(ctx, room.ID, ids[0], ids[1:])
	require.NoError(t, err)
	assert.Len(t, updated.Members, 3)
	added, ok := sink.last().(core.MembersAdded)
	require.True(t, ok)
	assert.Equal(t, ids, added.MemberIDs)

	assert.ErrorIs(t, s.LeaveRoom(ctx, room.ID, ids[0]), domain.ErrOwnerLeave)
	require.NoError(t, s.LeaveRoom(ctx, room.ID, ids[2]))
	left, ok := sink.last().(core.MemberLeft)
	require.True(t, ok)
	assert.Equal(t, ids[2], left.UserID)
	assert.Equal(t, ids[:2], left.Room.MemberIDs())

	assert.ErrorIs(t, s.Disband(ctx, room.ID, ids[1]), domain.ErrNotOwner)
	require.NoError(t, s.Disband(ctx, room.ID, ids[0]))
	disbanded, ok := sink.last().(core.RoomDisbanded)
	require.True(t, ok)
	assert.Equal(t, ids[:2], disbanded.MemberIDs)

	_, err = s.Room(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
