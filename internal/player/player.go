// Package player implements the per-guild playback engine: a FIFO track
// queue, a driver goroutine that serialises playback through the voice
// client, and an idle-disconnect timer that releases the voice connection
// when the bot goes unused.
package player

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultIdleTimeout = 5 * time.Minute
	defaultSettleDelay = time.Second
)

type Options struct {
	// IdleTimeout is how long the player stays connected with nothing to
	// do before disconnecting. Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration
	// SettleDelay is the short wait before the final idle check, giving
	// the sink time to flush. Zero means one second.
	SettleDelay time.Duration
}

// Player owns all mutable playback state for a single guild. Command
// handlers and the driver goroutine share it; the completion callback from
// the sink only ever touches the advance latch.
type Player struct {
	guildID  string
	voice    VoiceClient
	resolver Resolver
	queue    *trackQueue

	idleTimeout time.Duration
	settleDelay time.Duration

	mu         sync.Mutex
	current    *Track
	stopGen    uint64
	idleCancel context.CancelFunc
	teardown   func()

	cancel context.CancelFunc
	done   chan struct{}
}

// VoiceClient is the capability surface the engine drives. It matches
// voice.Client; the indirection keeps this package free of discord imports
// and lets tests substitute a fake.
type VoiceClient interface {
	Play(input string, onDone func(error)) error
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
	IsPaused() bool
	IsConnected() bool
	MemberCount() int
	ChannelID() string
	Disconnect() error
}

// New creates a Player bound to vc and starts its driver goroutine.
func New(guildID string, vc VoiceClient, res Resolver, opts Options) *Player {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		guildID:     guildID,
		voice:       vc,
		resolver:    res,
		queue:       newTrackQueue(),
		idleTimeout: opts.IdleTimeout,
		settleDelay: opts.SettleDelay,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// Voice exposes the bound voice client for precondition checks in handlers.
func (p *Player) Voice() VoiceClient { return p.voice }

// Enqueue resolves query and appends the result to the queue. On resolution
// failure the queue is untouched and the idle timer is not re-armed.
func (p *Player) Enqueue(ctx context.Context, query, requesterID, requesterName string) (Track, error) {
	t, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		return Track{}, err
	}
	t.RequesterID = requesterID
	t.RequesterName = requesterName

	p.queue.Put(t)
	p.armIdleTimer()
	slog.Info("track queued", "guildID", p.guildID, "title", t.Title, "requester", requesterName)
	return t, nil
}

// run is the driver loop: it dequeues one track at a time, hands it to the
// voice client, and waits for the completion callback before advancing.
// The callback for track N is always observed before track N+1 starts.
func (p *Player) run(ctx context.Context) {
	defer close(p.done)

	for {
		t, gen, ok := p.next(ctx)
		if !ok {
			return
		}

		advance := make(chan error, 1)
		var once sync.Once
		onDone := func(err error) {
			once.Do(func() { advance <- err })
		}

		if err := p.voice.Play(t.StreamURL, onDone); err != nil {
			slog.Error("failed to start playback", "guildID", p.guildID, "title", t.Title, "err", err)
			p.mu.Lock()
			p.current = nil
			p.mu.Unlock()
			p.armIdleTimer()
			continue
		}
		slog.Info("track started", "guildID", p.guildID, "title", t.Title)

		// A Stop issued while the sink was still starting saw nothing
		// playing; kill the sink here so its callback advances us.
		p.mu.Lock()
		stopped := gen != p.stopGen
		p.mu.Unlock()
		if stopped {
			p.voice.Stop()
		}

		select {
		case err := <-advance:
			if err != nil {
				slog.Error("playback ended with error", "guildID", p.guildID, "title", t.Title, "err", err)
			}
		case <-ctx.Done():
			p.mu.Lock()
			p.current = nil
			p.mu.Unlock()
			return
		}

		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
		p.armIdleTimer()
	}
}

// next blocks until a track can be promoted to current. The pop and the
// promotion happen under p.mu together, so Stop always observes the track
// either still queued or as current, never in between. The stop generation
// at promotion time is returned for the post-start check in run.
func (p *Player) next(ctx context.Context) (Track, uint64, bool) {
	for {
		p.mu.Lock()
		if t, ok := p.queue.tryTake(); ok {
			cur := t
			p.current = &cur
			gen := p.stopGen
			p.mu.Unlock()
			return t, gen, true
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return Track{}, 0, false
		case <-p.queue.wake:
		}
	}
}

// Skip advances past the current track by stopping the sink; the completion
// callback releases the driver.
func (p *Player) Skip() {
	if p.voice.IsPlaying() {
		p.voice.Stop()
	}
}

// Stop discards all pending tracks and stops the sink if a track is current
// or audible. The stop generation bump covers the window where the driver
// has promoted a track but its sink is not observably playing yet.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopGen++
	dropped := p.queue.Drain()
	inFlight := p.current != nil
	p.mu.Unlock()

	if inFlight || p.voice.IsPlaying() || p.voice.IsPaused() {
		p.voice.Stop()
	}
	p.armIdleTimer()
	slog.Info("playback stopped", "guildID", p.guildID, "dropped", dropped)
}

func (p *Player) Pause()  { p.voice.Pause() }
func (p *Player) Resume() { p.voice.Resume() }

// Current returns the track being streamed, or nil.
func (p *Player) Current() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	cp := *p.current
	return &cp
}

func (p *Player) QueueLen() int { return p.queue.Len() }

// Upcoming returns up to n pending tracks in play order.
func (p *Player) Upcoming(n int) []Track {
	return p.queue.Peek(n)
}

// setTeardown installs the registry hook invoked when the idle timer decides
// to disconnect. Must be called before the first enqueue.
func (p *Player) setTeardown(fn func()) {
	p.mu.Lock()
	p.teardown = fn
	p.mu.Unlock()
}

// close cancels the driver and any pending idle task and waits for the
// driver to exit. It does not stop the sink; callers stop the voice client
// separately.
func (p *Player) close() {
	p.mu.Lock()
	if p.idleCancel != nil {
		p.idleCancel()
		p.idleCancel = nil
	}
	p.mu.Unlock()

	p.cancel()
	<-p.done
}
