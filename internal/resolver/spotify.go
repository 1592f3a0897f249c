package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyClient translates Spotify track links into plain search queries so
// the rest of the pipeline only ever deals with yt-dlp inputs.
type SpotifyClient struct {
	raw *spotify.Client
}

func NewSpotifyClient(clientID, clientSecret string) *SpotifyClient {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(context.Background())
	return &SpotifyClient{raw: spotify.New(httpClient, spotify.WithRetry(true))}
}

// parseSpotifyTrackID accepts open.spotify.com track URLs and spotify: URIs.
func parseSpotifyTrackID(raw string) (spotify.ID, bool) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[1] == "track" {
			return spotify.ID(parts[2]), true
		}
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "track" {
		return spotify.ID(parts[1]), true
	}
	return "", false
}

// SearchQuery returns "artist name" for a track link, suitable as a search
// term. Only single tracks are translated; playlists and albums are not
// expanded here.
func (c *SpotifyClient) SearchQuery(ctx context.Context, id spotify.ID) (string, error) {
	t, err := c.raw.GetTrack(ctx, id)
	if err != nil {
		return "", fmt.Errorf("spotify track lookup: %w", err)
	}
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	if artist == "" {
		return t.Name, nil
	}
	return artist + " " + t.Name, nil
}
