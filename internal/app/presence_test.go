package app

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/dkeye/Messzola/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceJoinReturnsExistingPeers(t *testing.T) {
	p := NewPresence()

	assert.Empty(t, p.Join("r", "a"))
	assert.Equal(t, []domain.UserID{"a"}, p.Join("r", "b"))
	assert.Equal(t, []domain.UserID{"a", "b"}, p.Join("r", "c"))
}

func TestPresenceJoinIsIdempotent(t *testing.T) {
	p := NewPresence()
	p.Join("r", "a")
	p.Join("r", "b")

	assert.Equal(t, []domain.UserID{"a"}, p.Join("r", "b"))
	assert.Equal(t, []domain.UserID{"a", "b"}, p.Participants("r"))
}

func TestPresenceLeave(t *testing.T) {
	p := NewPresence()
	p.Join("r", "a")
	p.Join("r", "b")

	assert.Equal(t, []domain.UserID{"b"}, p.Leave("r", "a"))
	assert.Empty(t, p.Leave("r", "b"))
	assert.Equal(t, 0, p.ActiveRooms())

	assert.Empty(t, p.Leave("r", "b"))
	assert.Empty(t, p.Leave("nowhere", "x"))
}

func TestPresenceLeaveByOutsiderKeepsRoom(t *testing.T) {
	p := NewPresence()
	p.Join("r", "a")
	p.Join("r", "b")
	p.Join("other", "c")

	assert.Empty(t, p.Leave("r", "c"))
	assert.Equal(t, []domain.UserID{"a", "b"}, p.Participants("r"))

	room, ok := p.RoomOf("c")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("other"), room)
}

func TestPresenceOneCallPerUser(t *testing.T) {
	p := NewPresence()
	p.Join("r1", "a")
	p.Join("r1", "b")

	peers, from, remaining := p.Move("r2", "a")
	assert.Empty(t, peers)
	assert.Equal(t, domain.RoomID("r1"), from)
	assert.Equal(t, []domain.UserID{"b"}, remaining)

	room, ok := p.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("r2"), room)
	assert.Equal(t, []domain.UserID{"b"}, p.Participants("r1"))
}

// A random walk of joins and leaves must always agree with a naive model.
func TestPresenceMatchesModel(t *testing.T) {
	p := NewPresence()
	rng := rand.New(rand.NewSource(7))
	users := []domain.UserID{"a", "b", "c", "d", "e"}
	var model []domain.UserID

	for i := 0; i < 500; i++ {
		u := users[rng.Intn(len(users))]
		if rng.Intn(2) == 0 {
			want := without(model, u)
			got := p.Join("r", u)
			assert.ElementsMatch(t, want, got, "step %d join %s", i, u)
			if !contains(model, u) {
				model = append(model, u)
			}
			continue
		}
		if !contains(model, u) {
			assert.Empty(t, p.Leave("r", u), "step %d leave %s", i, u)
			continue
		}
		model = without(model, u)
		assert.ElementsMatch(t, model, p.Leave("r", u), "step %d leave %s", i, u)
	}

	for _, u := range users {
		p.Leave("r", u)
	}
	assert.Equal(t, 0, p.ActiveRooms())
}

func TestPresenceConcurrentJoinLeave(t *testing.T) {
	p := NewPresence()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := domain.UserID(fmt.Sprintf("u%d", i))
			p.Join("r", u)
			p.Leave("r", u)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, p.ActiveRooms())
}

func without(ids []domain.UserID, u domain.UserID) []domain.UserID {
	out := []domain.UserID{}
	for _, id := range ids {
		if id != u {
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []domain.UserID, u domain.UserID) bool {
	for _, id := range ids {
		if id == u {
			return true
		}
	}
	return false
}
