package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/dkeye/Messzola/internal/metrics"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	user     *domain.User
	alive    bool
	lastBeat time.Time
}

// Registry owns every authenticated connection and the user -> connections index.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.SignalConnection]*connEntry
	users map[domain.UserID]map[core.SignalConnection]struct{}

	auth      core.Authenticator
	policy    Policy
	metrics   *metrics.Metrics
	onOffline func(domain.UserID)
	now       func() time.Time
}

func NewRegistry(auth core.Authenticator, policy Policy, m *metrics.Metrics) *Registry {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Registry{
		conns:   make(map[core.SignalConnection]*connEntry),
		users:   make(map[domain.UserID]map[core.SignalConnection]struct{}),
		auth:    auth,
		policy:  policy,
		metrics: m,
		now:     time.Now,
	}
}

// OnOffline registers fn to run after a user's last connection is gone.
// fn runs outside the registry lock and may call back into it.
func (r *Registry) OnOffline(fn func(domain.UserID)) {
	r.mu.Lock()
	r.onOffline = fn
	r.mu.Unlock()
}

// Accept authenticates conn and registers it under its user.
// A rejected connection is closed with CloseMissingToken or CloseInvalidToken.
func (r *Registry) Accept(ctx context.Context, conn core.SignalConnection, token string) (*domain.User, error) {
	if token == "" {
		log.Debug().Str("module", "app.registry").Str("conn", conn.ID()).Msg("handshake without token")
		conn.Reject(core.CloseMissingToken, "Missing token")
		return nil, core.ErrMissingToken
	}
	user, err := r.auth.Verify(ctx, token)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.registry").Str("conn", conn.ID()).Msg("handshake with invalid token")
		conn.Reject(core.CloseInvalidToken, "Invalid token")
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	r.mu.Lock()
	r.conns[conn] = &connEntry{user: user, alive: true, lastBeat: r.now()}
	set, ok := r.users[user.ID]
	if !ok {
		set = make(map[core.SignalConnection]struct{})
		r.users[user.ID] = set
	}
	set[conn] = struct{}{}
	online := len(r.users)
	r.mu.Unlock()

	r.metrics.ConnOpened()
	r.metrics.SetOnlineUsers(online)
	log.Info().Str("module", "app.registry").Str("conn", conn.ID()).Str("user", string(user.ID)).Msg("connection accepted")

	r.SendToConnection(conn, core.Connected(user))
	return user, nil
}

// Close unregisters conn and closes its transport. Closing an unknown or
// already closed connection is a no-op.
func (r *Registry) Close(conn core.SignalConnection) {
	r.mu.Lock()
	e, ok := r.conns[conn]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, conn)
	offline := false
	if set, ok := r.users[e.user.ID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.users, e.user.ID)
			offline = true
		}
	}
	online := len(r.users)
	hook := r.onOffline
	r.mu.Unlock()

	conn.Close()
	r.metrics.ConnClosed()
	r.metrics.SetOnlineUsers(online)
	log.Info().Str("module", "app.registry").Str("conn", conn.ID()).Str("user", string(e.user.ID)).Bool("offline", offline).Msg("connection closed")

	if offline && hook != nil {
		hook(e.user.ID)
	}
}

// UserOf returns the user a registered connection belongs to.
func (r *Registry) UserOf(conn core.SignalConnection) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[conn]
	if !ok {
		return nil, false
	}
	return e.user, true
}

func (r *Registry) IsOnline(id domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

// ConnectionCount returns the number of live connections of a user.
func (r *Registry) ConnectionCount(id domain.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[id])
}

// SendToConnection writes v to a single connection. Unwritable connections are skipped.
func (r *Registry) SendToConnection(conn core.SignalConnection, v any) {
	frame, ok := encode(v)
	if !ok {
		return
	}
	r.mu.RLock()
	e, registered := r.conns[conn]
	r.mu.RUnlock()
	if !registered {
		r.metrics.FrameDropped("closed")
		return
	}
	r.deliver(e.user.ID, conn, frame)
}

// SendToUser writes v to every live connection of id and reports how many accepted it.
func (r *Registry) SendToUser(id domain.UserID, v any) int {
	frame, ok := encode(v)
	if !ok {
		return 0
	}
	return r.sendFrame(id, frame)
}

// BroadcastToUsers sends v once to every connection of every listed user
// except exclude. Duplicate ids are delivered once.
func (r *Registry) BroadcastToUsers(ids []domain.UserID, v any, exclude domain.UserID) int {
	frame, ok := encode(v)
	if !ok {
		return 0
	}
	seen := make(map[domain.UserID]struct{}, len(ids))
	sent := 0
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sent += r.sendFrame(id, frame)
	}
	return sent
}

func (r *Registry) sendFrame(id domain.UserID, frame core.Frame) int {
	r.mu.RLock()
	targets := make([]core.SignalConnection, 0, len(r.users[id]))
	for c := range r.users[id] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if r.deliver(id, c, frame) {
			sent++
		}
	}
	return sent
}

func (r *Registry) deliver(id domain.UserID, conn core.SignalConnection, frame core.Frame) bool {
	err := conn.TrySend(frame)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrBackpressure):
		r.metrics.FrameDropped("backpressure")
		switch r.policy.OnBackPressure(id, conn) {
		case KickMember:
			log.Warn().Str("module", "app.registry").Str("conn", conn.ID()).Str("user", string(id)).Msg("kicking slow connection")
			r.Close(conn)
		case DropFrame, NoAction:
		}
	default:
		r.metrics.FrameDropped("closed")
	}
	return false
}

// MarkAlive records a heartbeat reply.
func (r *Registry) MarkAlive(conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[conn]; ok {
		e.alive = true
		e.lastBeat = r.now()
	}
}

// Sweep runs one heartbeat round: connections that missed the previous ping are
// terminated, the rest are marked pending and pinged again.
func (r *Registry) Sweep() {
	var probe []core.SignalConnection
	dead := make(map[core.SignalConnection]time.Time)
	r.mu.Lock()
	for c, e := range r.conns {
		if !e.alive {
			dead[c] = e.lastBeat
			continue
		}
		e.alive = false
		probe = append(probe, c)
	}
	r.mu.Unlock()

	for c, last := range dead {
		log.Info().Str("module", "app.registry").Str("conn", c.ID()).Time("last_beat", last).Msg("heartbeat timeout")
		r.metrics.HeartbeatTerminated()
		r.Close(c)
	}
	for _, c := range probe {
		if err := c.Ping(); err != nil {
			log.Debug().Err(err).Str("module", "app.registry").Str("conn", c.ID()).Msg("ping failed")
			r.Close(c)
		}
	}
}

// RunHeartbeat sweeps every interval until ctx is done.
func (r *Registry) RunHeartbeat(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Sweep()
		}
	}
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("marshal envelope")
		return nil, false
	}
	return b, true
}
