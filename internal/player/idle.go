package player

import (
	"context"
	"log/slog"
	"time"
)

// armIdleTimer schedules the idle-disconnect check, replacing any pending
// one so only the latest timer ever fires. Re-armed on enqueue, track
// completion and explicit stop.
func (p *Player) armIdleTimer() {
	p.mu.Lock()
	if p.idleCancel != nil {
		p.idleCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.idleCancel = cancel
	p.mu.Unlock()

	go p.idleWatch(ctx)
}

func (p *Player) idleWatch(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(p.idleTimeout):
	}

	if !p.voice.IsConnected() {
		return
	}

	// Alone in the channel: leave right away, no settling wait.
	if p.voice.MemberCount() == 1 {
		slog.Info("idle timeout, alone in channel", "guildID", p.guildID)
		p.idleDisconnect()
		return
	}

	// Give the sink a moment to flush before the final check.
	select {
	case <-ctx.Done():
		return
	case <-time.After(p.settleDelay):
	}

	if !p.voice.IsPlaying() && p.queue.Len() == 0 && p.Current() == nil {
		slog.Info("idle timeout, nothing queued", "guildID", p.guildID)
		p.idleDisconnect()
	}
}

func (p *Player) idleDisconnect() {
	p.mu.Lock()
	fn := p.teardown
	p.mu.Unlock()
	if fn != nil {
		fn()
		return
	}
	if err := p.voice.Disconnect(); err != nil {
		slog.Warn("idle disconnect failed", "guildID", p.guildID, "err", err)
	}
}
