package player

import "context"

// Track is one queued item of audio. Immutable once created.
type Track struct {
	Title         string
	StreamURL     string // URL (or local path) the sink will consume
	OriginURL     string // canonical page URL, for display
	DurationSec   int    // 0 when unknown
	RequesterID   string
	RequesterName string
}

// Resolver turns a free-form query or URL into a playable track descriptor.
// It may block on network and subprocess work; callers run it off the
// gateway event path.
type Resolver interface {
	Resolve(ctx context.Context, query string) (Track, error)
}
