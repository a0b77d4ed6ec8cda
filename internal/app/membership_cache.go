package app

import (
	"context"
	"time"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// MembershipCache memoizes room member lists for a short ttl. Entries are
// dropped explicitly when a membership event for the room is seen.
type MembershipCache struct {
	inner core.Membership
	lru   *expirable.LRU[domain.RoomID, []domain.UserID]
}

func NewMembershipCache(inner core.Membership, size int, ttl time.Duration) *MembershipCache {
	return &MembershipCache{
		inner: inner,
		lru:   expirable.NewLRU[domain.RoomID, []domain.UserID](size, nil, ttl),
	}
}

func (c *MembershipCache) MemberIDs(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	if ids, ok := c.lru.Get(room); ok {
		return ids, nil
	}
	ids, err := c.inner.MemberIDs(ctx, room)
	if err != nil {
		return nil, err
	}
	c.lru.Add(room, ids)
	return ids, nil
}

// Invalidate forgets the cached member list of room.
func (c *MembershipCache) Invalidate(room domain.RoomID) {
	if c.lru.Remove(room) {
		log.Debug().Str("module", "app.membership").Str("room", string(room)).Msg("invalidated")
	}
}
