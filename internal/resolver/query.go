package resolver

import "strings"

// BuildQuery maps user input to a yt-dlp input: URLs pass through, anything
// else becomes a top-match search.
func BuildQuery(query string) string {
	if strings.HasPrefix(query, "http") {
		return query
	}
	return "ytsearch1:" + query
}
