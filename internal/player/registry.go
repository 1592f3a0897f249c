package player

import (
	"log/slog"
	"sync"
)

// Registry maps guild IDs to their Players. Command handlers run
// concurrently, so the table is mutex-guarded.
type Registry struct {
	resolver Resolver
	opts     Options

	mu      sync.Mutex
	players map[string]*Player
}

func NewRegistry(res Resolver, opts Options) *Registry {
	return &Registry{
		resolver: res,
		opts:     opts,
		players:  make(map[string]*Player),
	}
}

// GetOrCreate returns the guild's Player, constructing one bound to vc if
// absent. When a Player already exists its original voice binding wins and
// vc is ignored; callers that care must check the channel beforehand.
func (r *Registry) GetOrCreate(guildID string, vc VoiceClient) *Player {
	return r.GetOrCreateWith(guildID, vc, r.opts)
}

// GetOrCreateWith is GetOrCreate with per-guild option overrides, used when
// guild settings change the idle timeout.
func (r *Registry) GetOrCreateWith(guildID string, vc VoiceClient, opts Options) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := New(guildID, vc, r.resolver, opts)
	p.setTeardown(func() { r.Disconnect(guildID) })
	r.players[guildID] = p
	return p
}

// Peek returns the guild's Player or nil.
func (r *Registry) Peek(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[guildID]
}

// Disconnect tears the guild's Player down: stops the sink, disconnects the
// voice client (errors swallowed), cancels driver and idle tasks, removes
// the entry. Idempotent.
func (r *Registry) Disconnect(guildID string) {
	r.mu.Lock()
	p, ok := r.players[guildID]
	if ok {
		delete(r.players, guildID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	p.voice.Stop()
	if err := p.voice.Disconnect(); err != nil {
		slog.Warn("voice disconnect failed", "guildID", guildID, "err", err)
	}
	p.close()
	slog.Info("player torn down", "guildID", guildID)
}

// Len reports how many Players are active.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}
