package ui

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/metrolist/metrobot/internal/player"
	"github.com/metrolist/metrobot/internal/utils"
)

// accentColor is the brand green used on all queue embeds.
const accentColor = 0x1DB954

func trackLine(t player.Track) string {
	title := utils.EscapeMd(t.Title)
	if t.OriginURL != "" {
		return fmt.Sprintf("[%s](%s) (%s)", title, t.OriginURL, t.RequesterName)
	}
	return fmt.Sprintf("%s (%s)", title, t.RequesterName)
}

func BuildQueuedEmbed(t player.Track) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Queued",
		Description: utils.EscapeMd(t.Title),
		Color:       accentColor,
	}
	if t.DurationSec > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: utils.PrettyTime(t.DurationSec),
		}
	}
	return embed
}

// BuildQueueEmbed renders the now-playing line plus up to pageSize upcoming
// tracks. Returns nil when there is nothing to show.
func BuildQueueEmbed(guildName string, current *player.Track, upcoming []player.Track, pageSize int) *discordgo.MessageEmbed {
	var lines []string
	if current != nil {
		lines = append(lines, fmt.Sprintf("🎶 Now playing: %s", trackLine(*current)))
	}
	if len(upcoming) > pageSize {
		upcoming = upcoming[:pageSize]
	}
	for i, t := range upcoming {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, trackLine(t)))
	}
	if len(lines) == 0 {
		return nil
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Queue for %s", guildName),
		Description: strings.Join(lines, "\n"),
		Color:       accentColor,
	}
}
