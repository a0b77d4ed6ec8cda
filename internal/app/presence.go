package app

import (
	"sync"

	"github.com/dkeye/Messzola/internal/domain"
)

// Presence tracks who is currently in each room's call. A user is in at most
// one call; rooms with no participants are not kept.
type Presence struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID][]domain.UserID
	byUser map[domain.UserID]domain.RoomID
}

func NewPresence() *Presence {
	return &Presence{
		rooms:  make(map[domain.RoomID][]domain.UserID),
		byUser: make(map[domain.UserID]domain.RoomID),
	}
}

// Join adds user to room and returns the peers present before the add.
// Re-joining returns the same snapshot without duplicating the user.
func (p *Presence) Join(room domain.RoomID, user domain.UserID) []domain.UserID {
	peers, _, _ := p.Move(room, user)
	return peers
}

// Move is Join that also reports the call the user was pulled out of, if any,
// and who is left there.
func (p *Presence) Move(room domain.RoomID, user domain.UserID) (peers []domain.UserID, from domain.RoomID, remaining []domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.byUser[user]; ok && cur != room {
		from = cur
		remaining = p.removeLocked(cur, user)
	}

	members := p.rooms[room]
	peers = make([]domain.UserID, 0, len(members))
	present := false
	for _, id := range members {
		if id == user {
			present = true
			continue
		}
		peers = append(peers, id)
	}
	if !present {
		p.rooms[room] = append(members, user)
		p.byUser[user] = room
	}
	return peers, from, remaining
}

// Leave removes user from room and returns who is left.
// Unknown rooms or users yield an empty result.
func (p *Presence) Leave(room domain.RoomID, user domain.UserID) []domain.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(room, user)
}

func (p *Presence) removeLocked(room domain.RoomID, user domain.UserID) []domain.UserID {
	members, ok := p.rooms[room]
	if !ok {
		return []domain.UserID{}
	}
	remaining := make([]domain.UserID, 0, len(members))
	found := false
	for _, id := range members {
		if id == user {
			found = true
			continue
		}
		remaining = append(remaining, id)
	}
	if !found {
		return []domain.UserID{}
	}
	if p.byUser[user] == room {
		delete(p.byUser, user)
	}
	if len(remaining) == 0 {
		delete(p.rooms, room)
		return remaining
	}
	p.rooms[room] = remaining
	out := make([]domain.UserID, len(remaining))
	copy(out, remaining)
	return out
}

// RoomOf returns the call user is currently in.
func (p *Presence) RoomOf(user domain.UserID) (domain.RoomID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.byUser[user]
	return room, ok
}

// Participants returns a snapshot of the users in room's call.
func (p *Presence) Participants(room domain.RoomID) []domain.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.UserID, len(p.rooms[room]))
	copy(out, p.rooms[room])
	return out
}

// ActiveRooms returns the number of rooms with a call in progress.
func (p *Presence) ActiveRooms() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rooms)
}
