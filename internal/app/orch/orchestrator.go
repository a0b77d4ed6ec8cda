package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Messzola/internal/app"
	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/dkeye/Messzola/internal/metrics"
	"github.com/rs/zerolog/log"
)

const defaultCallerName = "User"

// Orchestrator routes decoded envelopes and persistence events to the
// registry and presence tracker.
type Orchestrator struct {
	Registry *app.Registry
	Presence *app.Presence
	Members  core.Membership
	Chat     core.ChatStore
	Limiter  *app.RateLimiter
	// Cache, when set, is invalidated on membership events. Members is
	// expected to read through it.
	Cache   *app.MembershipCache
	Metrics *metrics.Metrics

	DefaultCallerName string
}

// Init hooks the orchestrator into the registry lifecycle. Call once before serving.
func (o *Orchestrator) Init() {
	if o.DefaultCallerName == "" {
		o.DefaultCallerName = defaultCallerName
	}
	o.Registry.OnOffline(o.onOffline)
}

// OnFrame decodes one raw client frame from conn and dispatches it.
// Malformed and unknown envelopes are dropped.
func (o *Orchestrator) OnFrame(ctx context.Context, conn core.SignalConnection, data core.Frame) {
	user, ok := o.Registry.UserOf(conn)
	if !ok {
		return
	}
	in, err := core.Decode(data)
	if err != nil {
		outcome := "malformed"
		if errors.Is(err, core.ErrUnknownEnvelope) {
			outcome = "unknown"
		}
		o.Metrics.Envelope("", outcome)
		log.Debug().Err(err).Str("module", "app.orch").Str("user", string(user.ID)).Msg("dropping envelope")
		return
	}
	o.Dispatch(ctx, user, in)
}

// Dispatch runs the handler for one envelope sent by user.
func (o *Orchestrator) Dispatch(ctx context.Context, user *domain.User, in core.Inbound) {
	if !o.Limiter.Allow(user.ID) {
		o.Metrics.Envelope(in.Tag(), "limited")
		log.Debug().Str("module", "app.orch").Str("user", string(user.ID)).Str("type", in.Tag()).Msg("rate limited")
		return
	}
	o.Metrics.Envelope(in.Tag(), "ok")

	switch e := in.(type) {
	case core.SendMessage:
		o.handleSend(ctx, user, e)
	case core.Typing:
		o.handleTyping(ctx, user, e)
	case core.Join:
		o.Join(ctx, user, e.RoomID)
	case core.Leave:
		o.Leave(user.ID, e.RoomID)
	case core.Offer, core.Answer, core.ICE:
		o.relay(ctx, user, e)
	case core.CallStart:
		o.handleCallStart(ctx, user, e)
	case core.CallDecline:
		o.handleCallDecline(ctx, user, e)
	case core.CallCancel:
		o.handleCallCancel(ctx, user, e)
	case core.CallEnd:
		o.handleCallEnd(ctx, user, e)
	default:
		log.Warn().Str("module", "app.orch").Str("type", in.Tag()).Msg("no handler for envelope")
	}
}

// OnDisconnect is called by the transport when conn is gone.
func (o *Orchestrator) OnDisconnect(conn core.SignalConnection) {
	o.Registry.Close(conn)
}

// authorize resolves the room's member list and checks that user is in it.
// On failure the user gets an error envelope and ok is false.
func (o *Orchestrator) authorize(ctx context.Context, user domain.UserID, room domain.RoomID) (members []domain.UserID, ok bool) {
	if room == "" {
		o.sendError(user, domain.ErrEmptyRoomID)
		return nil, false
	}
	ids, err := o.Members.MemberIDs(ctx, room)
	if err != nil {
		o.sendError(user, err)
		return nil, false
	}
	if !domain.ContainsUser(ids, user) {
		o.sendError(user, domain.ErrNotMember)
		return nil, false
	}
	return ids, true
}

func (o *Orchestrator) sendError(user domain.UserID, err error) {
	msg := err.Error()
	if !isClientError(err) {
		log.Error().Err(err).Str("module", "app.orch").Str("user", string(user)).Msg("request failed")
		msg = "internal error"
	}
	o.Registry.SendToUser(user, core.Error(msg))
}

func isClientError(err error) bool {
	for _, target := range []error{
		domain.ErrNotMember,
		domain.ErrRoomNotFound,
		domain.ErrNotOwner,
		domain.ErrEmptyRoomID,
		domain.ErrEmptyMessage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
