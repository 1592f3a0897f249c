package config

type Config struct {
	DiscordToken        string
	FFmpegPath          string
	CookiesPath         string
	SpotifyClientID     string
	SpotifyClientSecret string
	DataDir             string
	CacheDir            string
	CacheLimitBytes     int64
	CacheTracks         bool // download tracks before playing instead of streaming
	IdleTimeoutSec      int
	KeepAlivePort       string
	EnableKeepAlive     bool
}
