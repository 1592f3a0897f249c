package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdering(t *testing.T) {
	q := newTrackQueue()
	q.Put(Track{Title: "a"})
	q.Put(Track{Title: "b"})
	q.Put(Track{Title: "c"})

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.tryTake()
		require.True(t, ok)
		assert.Equal(t, want, got.Title)
	}
	_, ok := q.tryTake()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueuePutSignalsWake(t *testing.T) {
	q := newTrackQueue()
	q.Put(Track{Title: "a"})

	select {
	case <-q.wake:
	case <-time.After(time.Second):
		t.Fatal("put did not signal wake")
	}

	// the wake channel is a single-slot edge trigger: back-to-back puts
	// must not block even with nobody draining it
	q.Put(Track{Title: "b"})
	q.Put(Track{Title: "c"})
	assert.Equal(t, 3, q.Len())
}

func TestQueueDrain(t *testing.T) {
	q := newTrackQueue()
	q.Put(Track{Title: "a"})
	q.Put(Track{Title: "b"})

	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain())
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	q := newTrackQueue()
	q.Put(Track{Title: "a"})
	q.Put(Track{Title: "b"})

	peeked := q.Peek(5)
	require.Len(t, peeked, 2)
	assert.Equal(t, "a", peeked[0].Title)
	assert.Equal(t, 2, q.Len())

	assert.Len(t, q.Peek(1), 1)
	assert.Empty(t, newTrackQueue().Peek(3))
}
