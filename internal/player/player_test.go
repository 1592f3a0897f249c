package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct {
	mu          sync.Mutex
	connected   bool
	playing     bool
	paused      bool
	members     int
	played      []string
	onDone      func(error)
	stops       int
	disconnects int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{connected: true, members: 2}
}

func (f *fakeVoice) Play(input string, onDone func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, input)
	f.playing = true
	f.paused = false
	f.onDone = onDone
	return nil
}

func (f *fakeVoice) Stop() {
	f.mu.Lock()
	cb := f.onDone
	f.onDone = nil
	f.playing = false
	f.paused = false
	f.stops++
	f.mu.Unlock()
	if cb != nil {
		cb(nil)
	}
}

// finish simulates the sink reaching the end of the stream.
func (f *fakeVoice) finish(err error) {
	f.mu.Lock()
	cb := f.onDone
	f.onDone = nil
	f.playing = false
	f.paused = false
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (f *fakeVoice) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playing {
		f.paused = true
	}
}

func (f *fakeVoice) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func (f *fakeVoice) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing && !f.paused
}

func (f *fakeVoice) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeVoice) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeVoice) MemberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members
}

func (f *fakeVoice) ChannelID() string { return "chan-1" }

func (f *fakeVoice) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.playing = false
	f.paused = false
	f.disconnects++
	return nil
}

func (f *fakeVoice) playedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.played))
	copy(out, f.played)
	return out
}

func (f *fakeVoice) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, query string) (Track, error) {
	if query == "fail" {
		return Track{}, errors.New("resolution failed")
	}
	return Track{
		Title:     "Track " + query,
		StreamURL: "https://stream/" + query,
		OriginURL: "https://origin/" + query,
	}, nil
}

func testOptions() Options {
	// long enough that idle never interferes unless a test wants it
	return Options{IdleTimeout: time.Hour, SettleDelay: time.Millisecond}
}

func waitForCurrent(t *testing.T, p *Player, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		cur := p.Current()
		return cur != nil && cur.Title == want
	}, 2*time.Second, 5*time.Millisecond, "expected current track %q", want)
}

func waitForIdle(t *testing.T, p *Player) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.Current() == nil && p.QueueLen() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlaybackAdvancesInEnqueueOrder(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	ctx := context.Background()
	t1, err := p.Enqueue(ctx, "one", "u1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Track one", t1.Title)
	assert.Equal(t, "Alice", t1.RequesterName)

	_, err = p.Enqueue(ctx, "two", "u1", "Alice")
	require.NoError(t, err)

	waitForCurrent(t, p, "Track one")
	fv.finish(nil)

	waitForCurrent(t, p, "Track two")
	fv.finish(nil)

	waitForIdle(t, p)
	assert.Equal(t, []string{"https://stream/one", "https://stream/two"}, fv.playedTitles())
}

func TestEnqueueResolutionFailureLeavesQueueUntouched(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	_, err := p.Enqueue(context.Background(), "fail", "u1", "Alice")
	require.Error(t, err)
	assert.Equal(t, 0, p.QueueLen())
	assert.Nil(t, p.Current())
	assert.Empty(t, fv.playedTitles())
}

func TestSkipAdvancesToNextTrack(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	ctx := context.Background()
	_, err := p.Enqueue(ctx, "one", "u1", "Alice")
	require.NoError(t, err)
	_, err = p.Enqueue(ctx, "two", "u1", "Alice")
	require.NoError(t, err)

	waitForCurrent(t, p, "Track one")
	p.Skip()
	waitForCurrent(t, p, "Track two")
}

func TestSkipWithNothingPlayingIsNoop(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	p.Skip()
	fv.mu.Lock()
	defer fv.mu.Unlock()
	assert.Equal(t, 0, fv.stops)
}

func TestStopDrainsQueueAndStopsSink(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := p.Enqueue(ctx, fmt.Sprintf("t%d", i), "u1", "Alice")
		require.NoError(t, err)
	}
	waitForCurrent(t, p, "Track t0")

	p.Stop()

	waitForIdle(t, p)
	assert.Equal(t, 0, p.QueueLen())
	assert.Nil(t, p.Current())
	// only the first track ever reached the sink
	assert.Equal(t, []string{"https://stream/t0"}, fv.playedTitles())
}

// gatedVoice holds Play until the gate opens, standing in for the real
// client's sink-startup latency.
type gatedVoice struct {
	*fakeVoice
	gate chan struct{}
}

func (v *gatedVoice) Play(input string, onDone func(error)) error {
	<-v.gate
	return v.fakeVoice.Play(input, onDone)
}

func TestStopWhileSinkStarting(t *testing.T) {
	fv := newFakeVoice()
	gv := &gatedVoice{fakeVoice: fv, gate: make(chan struct{})}
	p := New("g1", gv, fakeResolver{}, testOptions())
	defer p.close()

	_, err := p.Enqueue(context.Background(), "one", "u1", "Alice")
	require.NoError(t, err)

	// the driver promotes the track to current before the sink starts
	require.Eventually(t, func() bool {
		return p.Current() != nil
	}, 2*time.Second, time.Millisecond)

	// stop lands while Play is still blocked inside the voice client
	p.Stop()
	close(gv.gate)

	require.Eventually(t, func() bool {
		return p.Current() == nil && !fv.IsPlaying()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, p.QueueLen())
}

func TestPauseResumePreservesCurrent(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	_, err := p.Enqueue(context.Background(), "one", "u1", "Alice")
	require.NoError(t, err)
	waitForCurrent(t, p, "Track one")

	p.Pause()
	assert.True(t, fv.IsPaused())
	before := p.Current()

	p.Resume()
	assert.False(t, fv.IsPaused())
	after := p.Current()

	require.NotNil(t, before)
	require.NotNil(t, after)
	assert.Equal(t, before.Title, after.Title)
}

func TestSinkErrorStillAdvances(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	ctx := context.Background()
	_, err := p.Enqueue(ctx, "one", "u1", "Alice")
	require.NoError(t, err)
	_, err = p.Enqueue(ctx, "two", "u1", "Alice")
	require.NoError(t, err)

	waitForCurrent(t, p, "Track one")
	fv.finish(errors.New("stream reset by peer"))
	waitForCurrent(t, p, "Track two")
}

func TestIdleDisconnectAloneSkipsSettling(t *testing.T) {
	fv := newFakeVoice()
	fv.members = 1
	// settling interval far larger than the test timeout, so a disconnect
	// can only happen through the alone fast path
	p := New("g1", fv, fakeResolver{}, Options{IdleTimeout: 30 * time.Millisecond, SettleDelay: time.Hour})
	defer p.close()

	_, err := p.Enqueue(context.Background(), "one", "u1", "Alice")
	require.NoError(t, err)
	waitForCurrent(t, p, "Track one")
	fv.finish(nil)

	require.Eventually(t, func() bool {
		return fv.disconnectCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestIdleDisconnectWithListenersAfterSettling(t *testing.T) {
	fv := newFakeVoice()
	fv.members = 3
	p := New("g1", fv, fakeResolver{}, Options{IdleTimeout: 30 * time.Millisecond, SettleDelay: 20 * time.Millisecond})
	defer p.close()

	_, err := p.Enqueue(context.Background(), "one", "u1", "Alice")
	require.NoError(t, err)
	waitForCurrent(t, p, "Track one")
	fv.finish(nil)

	require.Eventually(t, func() bool {
		return fv.disconnectCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestIdleTimerRearmReplacesPending(t *testing.T) {
	fv := newFakeVoice()
	fv.members = 3
	p := New("g1", fv, fakeResolver{}, Options{IdleTimeout: 150 * time.Millisecond, SettleDelay: time.Millisecond})
	defer p.close()

	p.armIdleTimer()
	time.Sleep(75 * time.Millisecond)
	p.armIdleTimer() // cancels the first timer

	// the original deadline passes without a disconnect
	time.Sleep(110 * time.Millisecond)
	assert.Equal(t, 0, fv.disconnectCount())

	require.Eventually(t, func() bool {
		return fv.disconnectCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestIdleTimerNoDisconnectWhilePlaying(t *testing.T) {
	fv := newFakeVoice()
	fv.members = 3
	p := New("g1", fv, fakeResolver{}, Options{IdleTimeout: 20 * time.Millisecond, SettleDelay: time.Millisecond})
	defer p.close()

	_, err := p.Enqueue(context.Background(), "one", "u1", "Alice")
	require.NoError(t, err)
	waitForCurrent(t, p, "Track one")

	// idle deadline passes mid-playback; guards must hold the connection
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, fv.disconnectCount())
	assert.True(t, fv.IsConnected())
}

func TestUpcomingListsPendingTracks(t *testing.T) {
	fv := newFakeVoice()
	p := New("g1", fv, fakeResolver{}, testOptions())
	defer p.close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := p.Enqueue(ctx, fmt.Sprintf("t%d", i), "u1", "Alice")
		require.NoError(t, err)
	}
	waitForCurrent(t, p, "Track t0")

	up := p.Upcoming(10)
	require.Len(t, up, 2)
	assert.Equal(t, "Track t1", up[0].Title)
	assert.Equal(t, "Track t2", up[1].Title)

	assert.Len(t, p.Upcoming(1), 1)
}
