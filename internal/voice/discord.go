// Package voice wraps a discordgo voice connection behind the capability
// surface the playback engine drives: start a sink, stop it, pause, query
// state, disconnect. It satisfies player.VoiceClient.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/metrolist/metrobot/internal/sink"
)

type Conn struct {
	s        *discordgo.Session
	guildID  string
	sinkOpts sink.Options

	mu        sync.Mutex
	vc        *discordgo.VoiceConnection
	channelID string
	stream    *sink.Stream
	playing   bool
	paused    bool
}

// Join connects to a voice channel and returns a Conn bound to it.
func Join(s *discordgo.Session, guildID, channelID string, opts sink.Options) (*Conn, error) {
	vc, err := s.ChannelVoiceJoin(context.Background(), guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}

	// Guard against the panic in Kill() when channels are nil
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	return &Conn{
		s:         s,
		guildID:   guildID,
		sinkOpts:  opts,
		vc:        vc,
		channelID: channelID,
	}, nil
}

// Play starts a sink for input and reports completion through onDone. The
// callback runs on the sink goroutine; it fires exactly once.
func (c *Conn) Play(input string, onDone func(error)) error {
	c.mu.Lock()
	vc := c.vc
	if vc == nil {
		c.mu.Unlock()
		return errors.New("not connected")
	}
	if c.stream != nil {
		old := c.stream
		c.stream = nil
		c.mu.Unlock()
		old.Stop()
		c.mu.Lock()
	}

	wrapped := func(err error) {
		c.mu.Lock()
		c.stream = nil
		c.playing = false
		c.paused = false
		c.mu.Unlock()
		onDone(err)
	}

	st, err := sink.Start(input, c.sinkOpts, vc.OpusSend, vc.Speaking, wrapped)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.stream = st
	c.playing = true
	c.paused = false
	c.mu.Unlock()
	return nil
}

// Stop kills the active sink; its completion callback fires with nil.
func (c *Conn) Stop() {
	c.mu.Lock()
	st := c.stream
	c.mu.Unlock()
	if st != nil {
		st.Stop()
	}
}

func (c *Conn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil && !c.paused {
		c.stream.Pause()
		c.paused = true
	}
}

func (c *Conn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil && c.paused {
		c.stream.Resume()
		c.paused = false
	}
}

func (c *Conn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.paused
}

func (c *Conn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil
}

func (c *Conn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// MemberCount reports how many users, the bot included, are in the bound
// voice channel right now.
func (c *Conn) MemberCount() int {
	c.mu.Lock()
	chID := c.channelID
	c.mu.Unlock()

	g, err := c.s.State.Guild(c.guildID)
	if err != nil || g == nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == chID {
			n++
		}
	}
	return n
}

// Disconnect stops any sink and closes the voice connection. Safe to call
// on a half-initialized or already closed connection.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	st := c.stream
	c.stream = nil
	vc := c.vc
	c.vc = nil
	c.channelID = ""
	c.playing = false
	c.paused = false
	c.mu.Unlock()

	if st != nil {
		st.Stop()
	}
	if vc == nil {
		return nil
	}
	return safeDisconnect(vc, c.guildID)
}

func safeDisconnect(vc *discordgo.VoiceConnection, guildID string) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", guildID)
		}
	}()

	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	_ = vc.Speaking(false)

	// let pending sends drain before the websocket goes away
	time.Sleep(150 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return vc.Disconnect(ctx)
}
