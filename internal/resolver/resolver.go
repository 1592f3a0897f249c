package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/metrolist/metrobot/internal/cache"
	"github.com/metrolist/metrobot/internal/config"
	"github.com/metrolist/metrobot/internal/player"
)

var ErrNoResults = errors.New("no results")

var installOnce sync.Once

// Resolver implements player.Resolver on top of yt-dlp. When the config
// enables track caching, resolved tracks are downloaded into the file cache
// and played from disk instead of streamed.
type Resolver struct {
	cfg     *config.Config
	spotify *SpotifyClient
	cache   *cache.FileCache
}

func New(cfg *config.Config, fc *cache.FileCache) *Resolver {
	r := &Resolver{cfg: cfg, cache: fc}
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		r.spotify = NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, query string) (player.Track, error) {
	if r.spotify != nil {
		if id, ok := parseSpotifyTrackID(query); ok {
			q, err := r.spotify.SearchQuery(ctx, id)
			if err != nil {
				return player.Track{}, err
			}
			slog.Debug("spotify link translated", "query", q)
			query = q
		}
	}

	info, err := r.extractInfo(ctx, BuildQuery(query))
	if err != nil {
		return player.Track{}, err
	}

	streamURL := pickMediaURL(info)
	if streamURL == "" {
		return player.Track{}, ErrNoResults
	}

	t := player.Track{
		Title:       info.Title,
		StreamURL:   streamURL,
		OriginURL:   info.WebpageURL,
		DurationSec: int(info.Duration),
	}

	if r.cfg.CacheTracks && r.cache != nil {
		path, err := r.download(ctx, t.OriginURL, streamURL)
		if err != nil {
			// fall back to streaming; caching is best effort
			slog.Warn("track download failed, streaming instead", "origin", t.OriginURL, "err", err)
		} else {
			t.StreamURL = path
		}
	}
	return t, nil
}

type mediaInfo struct {
	Title      string
	Duration   float64
	WebpageURL string
	URL        string
	Formats    []string
}

func (r *Resolver) newCommand() *ytdlp.Command {
	installOnce.Do(func() {
		ytdlp.MustInstall(context.Background(), nil)
	})
	cmd := ytdlp.New().
		Format("bestaudio/best").
		NoPlaylist().
		Quiet().
		NoWarnings()
	if _, err := os.Stat(r.cfg.CookiesPath); err == nil {
		cmd = cmd.Cookies(r.cfg.CookiesPath)
	}
	return cmd
}

func (r *Resolver) extractInfo(ctx context.Context, input string) (*mediaInfo, error) {
	cmd := r.newCommand().DumpJSON()

	res, err := cmd.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, ErrNoResults
	}

	ext := infos[0]
	// Search results come back as a one-entry container; unwrap to the match.
	if len(ext.Entries) > 0 {
		found := false
		for _, e := range ext.Entries {
			if e != nil {
				ext = e
				found = true
				break
			}
		}
		if !found {
			return nil, ErrNoResults
		}
	}

	out := &mediaInfo{
		Title:      deref(ext.Title),
		Duration:   derefF(ext.Duration),
		WebpageURL: deref(ext.WebpageURL),
		URL:        deref(ext.URL),
	}
	for _, f := range ext.Formats {
		if f != nil {
			out.Formats = append(out.Formats, f.URL)
		}
	}
	return out, nil
}

// pickMediaURL prefers the top-level resolved URL, then the first http format.
func pickMediaURL(info *mediaInfo) string {
	if strings.HasPrefix(info.URL, "http") {
		return info.URL
	}
	for _, u := range info.Formats {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	return ""
}

// download fetches the track into the file cache and returns the local path.
func (r *Resolver) download(ctx context.Context, originURL, streamURL string) (string, error) {
	key := originURL
	if key == "" {
		key = streamURL
	}
	hash := r.cache.HashKey(key)
	if path, ok := r.cache.Get(ctx, hash); ok {
		return path, nil
	}

	tmp := r.cache.TempPath(hash)
	cmd := r.newCommand().Output(tmp)
	if _, err := cmd.Run(ctx, key); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("yt-dlp download: %w", err)
	}
	return r.cache.Commit(ctx, tmp, hash)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefF(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
