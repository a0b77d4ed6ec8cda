package orch

import (
	"context"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/rs/zerolog/log"
)

// RunEvents fans persistence events out to connected members until ctx is
// done or events is closed.
func (o *Orchestrator) RunEvents(ctx context.Context, events <-chan core.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			o.HandleEvent(ctx, ev)
		}
	}
}

func (o *Orchestrator) HandleEvent(ctx context.Context, ev core.Event) {
	switch e := ev.(type) {
	case core.MessageCreated:
		members, err := o.Members.MemberIDs(ctx, e.RoomID)
		if err != nil {
			log.Error().Err(err).Str("module", "app.orch").Str("room", string(e.RoomID)).Msg("resolve members for message")
			return
		}
		o.Registry.BroadcastToUsers(members, core.Msg(e.Message), "")
	case core.RoomDisbanded:
		o.invalidate(e.RoomID)
		o.EvictRoom(e.RoomID)
		if len(e.MemberIDs) == 0 {
			return
		}
		o.Registry.BroadcastToUsers(e.MemberIDs, core.RoomDisbandedNotice(e.RoomID), "")
	case core.MembersAdded:
		if e.Room == nil || len(e.MemberIDs) == 0 {
			return
		}
		o.invalidate(e.Room.ID)
		o.Registry.BroadcastToUsers(e.MemberIDs, core.RoomUpdated(e.Room), "")
	case core.MemberLeft:
		if e.Room == nil {
			return
		}
		o.invalidate(e.Room.ID)
		if room, ok := o.Presence.RoomOf(e.UserID); ok && room == e.Room.ID {
			o.Leave(e.UserID, room)
		}
		o.Registry.BroadcastToUsers(e.Room.MemberIDs(), core.RoomUpdated(e.Room), "")
	default:
		log.Warn().Str("module", "app.orch").Type("event", ev).Msg("unhandled event")
	}
}

func (o *Orchestrator) invalidate(room domain.RoomID) {
	if o.Cache != nil {
		o.Cache.Invalidate(room)
	}
}
