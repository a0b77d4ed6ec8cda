package domain

import "errors"

type RoomID string

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotMember    = errors.New("not a member of this room")
	ErrNotOwner     = errors.New("only the room owner can do this")
	ErrEmptyRoomID  = errors.New("room id is required")
	ErrNotGroup     = errors.New("room is not a group")
	ErrOwnerLeave   = errors.New("owner must disband the group instead of leaving")
)

// Room is the snapshot pushed to clients in room-updated notifications.
type Room struct {
	ID        RoomID   `json:"id"`
	Name      string   `json:"name"`
	IsGroup   bool     `json:"isGroup"`
	OwnerID   UserID   `json:"ownerId,omitempty"`
	CreatedAt int64    `json:"createdAt"`
	Members   []Member `json:"members"`
}

// MemberIDs returns the ids of all members in snapshot order.
func (r *Room) MemberIDs() []UserID {
	out := make([]UserID, 0, len(r.Members))
	for _, m := range r.Members {
		out = append(out, m.UserID)
	}
	return out
}

// ContainsUser reports whether id is present in ids.
func ContainsUser(ids []UserID, id UserID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
