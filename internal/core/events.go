package core

import "github.com/dkeye/Messzola/internal/domain"

// Event is raised by the persistence layer after a committed change.
// The set of events is closed: only types in this package implement it.
type Event interface {
	isEvent()
}

type MessageCreated struct {
	RoomID  domain.RoomID
	Message *domain.Message
}

// RoomDisbanded carries the member list captured before deletion.
type RoomDisbanded struct {
	RoomID    domain.RoomID
	MemberIDs []domain.UserID
}

// MembersAdded carries the room snapshot after the insert and the full new member list.
type MembersAdded struct {
	Room      *domain.Room
	MemberIDs []domain.UserID
}

type MemberLeft struct {
	Room   *domain.Room
	UserID domain.UserID
}

func (MessageCreated) isEvent() {}
func (RoomDisbanded) isEvent()  {}
func (MembersAdded) isEvent()   {}
func (MemberLeft) isEvent()     {}
