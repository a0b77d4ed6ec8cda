package orch

import (
	"context"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/rs/zerolog/log"
)

// relay forwards an offer, answer or ICE candidate to its target, tagged with the sender.
func (o *Orchestrator) relay(ctx context.Context, user *domain.User, in core.Inbound) {
	if _, ok := o.authorize(ctx, user.ID, in.Room()); !ok {
		return
	}
	out := core.Relay(in, user.ID)
	n := o.Registry.SendToUser(out.To, out)
	log.Debug().Str("module", "app.orch").Str("type", out.T).Str("from", string(user.ID)).Str("to", string(out.To)).Int("delivered", n).Msg("relayed")
}
