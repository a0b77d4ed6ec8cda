package app

import (
	"context"
	"sync"
	"testing"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accept(t *testing.T, r *Registry, connID, user string) *fakeConn {
	t.Helper()
	c := newFakeConn(connID)
	_, err := r.Accept(context.Background(), c, "token-"+user)
	require.NoError(t, err)
	return c
}

func TestAcceptSendsConnected(t *testing.T) {
	r := NewRegistry(fakeAuth{}, nil, nil)
	c := accept(t, r, "c1", "alice")

	assert.Equal(t, []string{core.TagConnected}, c.tags())
	assert.True(t, r.IsOnline("alice"))
	u, ok := r.UserOf(c)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("alice"), u.ID)
}

func TestAcceptRejectsMissingAndInvalidToken(t *testing.T) {
	r := NewRegistry(fakeAuth{}, nil, nil)

	missing := newFakeConn("m")
	_, err := r.Accept(context.Background(), missing, "")
	assert.ErrorIs(t, err, core.ErrMissingToken)
	assert.Equal(t, core.CloseMissingToken, missing.rejected)

	invalid := newFakeConn("i")
	_, err = r.Accept(context.Background(), invalid, "garbage")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	assert.Equal(t, core.CloseInvalidToken, invalid.rejected)

	_, ok := r.UserOf(invalid)
	assert.False(t, ok)
	assert.Empty(t, invalid.tags())
}

func TestSendToUserReachesEveryConnectionOnce(t *testing.T) {
	r := NewRegistry(fakeAuth{}, nil, nil)
	conns := []*fakeConn{
		accept(t, r, "c1", "alice"),
		accept(t, r, "c2", "alice"),
		accept(t, r, "c3", "alice"),
	}
	closed := accept(t, r, "c4", "alice")
	r.Close(closed)

	n := r.SendToUser("alice", core.Error("x"))
	assert.Equal(t, 3, n)
	for _, c := range conns {
		assert.Equal(t, []string{core.TagConnected, core.TagError}, c.tags())
	}
	assert.Equal(t, []string{core.TagConnected}, closed.tags())
}

func TestBroadcastExcludesAndDedupes(t *testing.T) {
	r := NewRegistry(fakeAuth{}, nil, nil)
	a := accept(t, r, "a", "alice")
	b1 := accept(t, r, "b1", "bob")
	b2 := accept(t, r, "b2", "bob")
	c := accept(t, r, "c", "carol")

	ids := []domain.UserID{"alice", "bob", "carol", "bob", "dave"}
	n := r.BroadcastToUsers(ids, core.TypingNotice("r", "alice", true), "alice")

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{core.TagConnected}, a.tags())
	for _, conn := range []*fakeConn{b1, b2, c} {
		assert.Equal(t, []string{core.TagConnected, core.TagTyping}, conn.tags())
	}
}

func TestCloseIsIdempotentAndFiresOfflineOnce(t *testing.T) {
	r := NewRegistry(fakeAuth{}, nil, nil)
	var mu sync.Mutex
	var offline []domain.UserID
	r.OnOffline(func(id domain.UserID) {
		mu.Lock()
		offline = append(offline, id)
		mu.Unlock()
	})

	c1 := accept(t, r, "c1", "alice")
	c2 := accept(t, r, "c2", "alice")

	r.Close(c1)
	assert.True(t, r.IsOnline("alice"))
	assert.Empty(t, offline)

	r.Close(c2)
	r.Close(c2)
	assert.False(t, r.IsOnline("alice"))
	assert.Equal(t, []domain.UserID{"alice"}, offline)
	assert.True(t, c2.isClosed())
}

func TestHeartbeatTerminatesSilentConnectionWithinTwoSweeps(t *testing.T) {
	r := NewRegistry(fakeAuth{}, nil, nil)
	silent := accept(t, r, "silent", "alice")
	live := accept(t, r, "live", "bob")

	r.Sweep()
	assert.Equal(t, 1, silent.pings)
	assert.False(t, silent.isClosed())
	r.MarkAlive(live)

	r.Sweep()
	assert.True(t, silent.isClosed())
	assert.False(t, r.IsOnline("alice"))
	assert.Equal(t, 0, r.ConnectionCount("alice"))

	assert.False(t, live.isClosed())
	assert.Equal(t, 2, live.pings)
}

func TestBackpressureKicksOnlyTheSlowConnection(t *testing.T) {
	r := NewRegistry(fakeAuth{}, SimplePolicy{}, nil)
	fast := accept(t, r, "fast", "alice")
	slow := accept(t, r, "slow", "alice")
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	n := r.SendToUser("alice", core.Error("x"))
	assert.Equal(t, 1, n)
	assert.True(t, slow.isClosed())
	assert.Equal(t, 1, r.ConnectionCount("alice"))

	r.SendToUser("alice", core.Error("y"))
	assert.Equal(t, []string{core.TagConnected, core.TagError, core.TagError}, fast.tags())
}

func TestSendToConnectionSkipsUnregistered(t *testing.T) {
	r := NewRegistry(fakeAuth{}, nil, nil)
	stray := newFakeConn("stray")
	r.SendToConnection(stray, core.Error("x"))
	assert.Empty(t, stray.tags())
}
