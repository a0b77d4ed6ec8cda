package orch

import (
	"context"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join puts user into room's call. The user gets the peers already there,
// each of them gets rtc-joined. A call the user was still in is left first.
func (o *Orchestrator) Join(ctx context.Context, user *domain.User, room domain.RoomID) {
	if _, ok := o.authorize(ctx, user.ID, room); !ok {
		return
	}
	peers, from, remaining := o.Presence.Move(room, user.ID)
	if from != "" {
		log.Info().Str("module", "app.orch").Str("user", string(user.ID)).Str("from_room", string(from)).Msg("left previous call")
		o.notifyLeft(from, user.ID, remaining)
	}

	o.Registry.SendToUser(user.ID, core.Peers(room, peers))
	for _, peer := range peers {
		o.Registry.SendToUser(peer, core.Joined(room, user.ID))
	}
	o.Metrics.CallEvent("join")
	o.Metrics.SetActiveCalls(o.Presence.ActiveRooms())
	log.Info().Str("module", "app.orch").Str("user", string(user.ID)).Str("room", string(room)).Int("peers", len(peers)).Msg("joined call")
}

// Leave removes user from room's call and tells whoever is left.
func (o *Orchestrator) Leave(user domain.UserID, room domain.RoomID) {
	remaining := o.Presence.Leave(room, user)
	o.notifyLeft(room, user, remaining)
	o.Metrics.SetActiveCalls(o.Presence.ActiveRooms())
	log.Info().Str("module", "app.orch").Str("user", string(user)).Str("room", string(room)).Msg("left call")
}

func (o *Orchestrator) notifyLeft(room domain.RoomID, user domain.UserID, remaining []domain.UserID) {
	for _, peer := range remaining {
		o.Registry.SendToUser(peer, core.Left(room, user))
	}
}

// onOffline runs when the user's last connection closed.
func (o *Orchestrator) onOffline(user domain.UserID) {
	o.Limiter.Forget(user)
	room, ok := o.Presence.RoomOf(user)
	if !ok {
		return
	}
	o.Metrics.CallEvent("drop")
	o.Leave(user, room)
}

// EvictRoom ends the call in room without notifying anyone.
func (o *Orchestrator) EvictRoom(room domain.RoomID) {
	for _, id := range o.Presence.Participants(room) {
		o.Presence.Leave(room, id)
	}
	o.Metrics.SetActiveCalls(o.Presence.ActiveRooms())
}
