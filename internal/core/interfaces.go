package core

import (
	"context"
	"errors"

	"github.com/dkeye/Messzola/internal/domain"
)

// Frame is a serialized outbound envelope.
type Frame []byte

// Close codes sent to a client whose handshake was rejected.
const (
	CloseMissingToken = 4001
	CloseInvalidToken = 4002
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")

	// ErrBackpressure is returned by TrySend when the send buffer is full.
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the registry only pushes frames and pings through it.
type SignalConnection interface {
	ID() string
	TrySend(Frame) error
	// Ping sends a liveness probe. The adapter reports the reply to Registry.MarkAlive.
	Ping() error
	// Reject closes the transport with an application close code.
	Reject(code int, reason string)
	Close()
}

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// Membership resolves a room to the ids of users authorized in it.
// Returns domain.ErrRoomNotFound for unknown rooms.
type Membership interface {
	MemberIDs(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error)
}

// ChatStore persists chat records. Successful writes raise MessageCreated
// through the store's EventSink.
type ChatStore interface {
	SendMessage(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error)
	SaveCallHistory(ctx context.Context, roomID domain.RoomID, userID domain.UserID, status domain.CallStatus) (*domain.Message, error)
}

// EventSink receives persistence events. Publish must not block the caller
// for long; implementations may drop under overload.
type EventSink interface {
	Publish(Event)
}
