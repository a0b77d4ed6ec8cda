package orch

import (
	"context"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleCallStart(ctx context.Context, user *domain.User, e core.CallStart) {
	members, ok := o.authorize(ctx, user.ID, e.RoomID)
	if !ok {
		return
	}
	name := e.CallerName
	if name == "" {
		name = o.DefaultCallerName
	}
	o.Registry.BroadcastToUsers(members, core.CallIncoming(e.RoomID, user.ID, name), user.ID)
	o.Metrics.CallEvent("start")
	log.Info().Str("module", "app.orch").Str("user", string(user.ID)).Str("room", string(e.RoomID)).Msg("call started")
}

func (o *Orchestrator) handleCallDecline(ctx context.Context, user *domain.User, e core.CallDecline) {
	members, ok := o.authorize(ctx, user.ID, e.RoomID)
	if !ok {
		return
	}
	o.Registry.BroadcastToUsers(members, core.CallDeclined(e.RoomID, user.ID), user.ID)
	o.Metrics.CallEvent("decline")
}

// handleCallCancel is the caller hanging up before anyone answered: the
// call is recorded as missed.
func (o *Orchestrator) handleCallCancel(ctx context.Context, user *domain.User, e core.CallCancel) {
	if e.RoomID == "" {
		log.Warn().Str("module", "app.orch").Str("user", string(user.ID)).Msg("call cancel without room, skipping history")
		return
	}
	members, ok := o.authorize(ctx, user.ID, e.RoomID)
	if !ok {
		return
	}
	o.recordCall(ctx, e.RoomID, user.ID, domain.CallMissed)
	o.Registry.BroadcastToUsers(members, core.CallCancelled(e.RoomID, user.ID), user.ID)
	o.Metrics.CallEvent("cancel")
}

func (o *Orchestrator) handleCallEnd(ctx context.Context, user *domain.User, e core.CallEnd) {
	if e.RoomID == "" {
		log.Warn().Str("module", "app.orch").Str("user", string(user.ID)).Msg("call end without room, skipping history")
		return
	}
	if _, ok := o.authorize(ctx, user.ID, e.RoomID); !ok {
		return
	}
	status := e.Status
	if status == "" {
		status = domain.CallCompleted
	}
	o.recordCall(ctx, e.RoomID, user.ID, status)
	o.Metrics.CallEvent("end")
}

// recordCall stores a call-history entry. Failures are logged only.
func (o *Orchestrator) recordCall(ctx context.Context, room domain.RoomID, user domain.UserID, status domain.CallStatus) {
	if _, err := o.Chat.SaveCallHistory(ctx, room, user, status); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(room)).Str("user", string(user)).Str("status", string(status)).Msg("failed to save call history")
	}
}
