package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/metrolist/metrobot/internal/config"
	"github.com/metrolist/metrobot/internal/player"
	"github.com/metrolist/metrobot/internal/repository"
	"github.com/metrolist/metrobot/internal/sink"
	"github.com/metrolist/metrobot/internal/ui"
	"github.com/metrolist/metrobot/internal/voice"
)

const prefix = "!"

const helpText = "Commands:\n" +
	"!play <query or url> — play or queue a song\n" +
	"!skip — skip current song\n" +
	"!pause — pause playback\n" +
	"!resume — resume playback\n" +
	"!stop — stop and clear queue\n" +
	"!queue — show queue\n" +
	"!leave — disconnect bot\n"

type CommandHandler struct {
	cfg  *config.Config
	repo *repository.Repo
	reg  *player.Registry
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, reg *player.Registry) *CommandHandler {
	return &CommandHandler{cfg: cfg, repo: repo, reg: reg}
}

func (h *CommandHandler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(m.Content, prefix), " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	slog.Debug("command", "guildID", m.GuildID, "userID", m.Author.ID, "name", name)

	switch name {
	case "play":
		h.cmdPlay(s, m, arg)
	case "skip":
		h.cmdSkip(s, m)
	case "pause":
		h.cmdPause(s, m)
	case "resume":
		h.cmdResume(s, m)
	case "stop":
		h.cmdStop(s, m)
	case "queue":
		h.cmdQueue(s, m)
	case "leave":
		h.cmdLeave(s, m)
	case "settings":
		h.cmdSettings(s, m, arg)
	case "helpme":
		reply(s, m.ChannelID, "```\n"+helpText+"\n```")
	}
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, m *discordgo.MessageCreate, query string) {
	if query == "" {
		reply(s, m.ChannelID, "Usage: !play <query or url>")
		return
	}
	ctx := context.Background()
	_ = s.ChannelTyping(m.ChannelID)

	p := h.reg.Peek(m.GuildID)
	userCh := userVoiceChannel(s, m.GuildID, m.Author.ID)
	if p == nil {
		if userCh == "" {
			reply(s, m.ChannelID, "You are not connected to a voice channel.")
			return
		}
		conn, err := voice.Join(s, m.GuildID, userCh, sink.Options{FFmpegPath: h.cfg.FFmpegPath})
		if err != nil {
			slog.Error("voice join failed", "guildID", m.GuildID, "channelID", userCh, "err", err)
			reply(s, m.ChannelID, "Could not join your voice channel.")
			return
		}
		p = h.reg.GetOrCreateWith(m.GuildID, conn, h.guildOptions(ctx, m.GuildID))
	} else if userCh != "" && userCh != p.Voice().ChannelID() {
		reply(s, m.ChannelID, "Already playing in another voice channel.")
		return
	}

	entry, err := p.Enqueue(ctx, query, m.Author.ID, displayName(m))
	if err != nil {
		slog.Error("enqueue failed", "guildID", m.GuildID, "query", query, "err", err)
		reply(s, m.ChannelID, "could not resolve: "+query)
		return
	}
	replyEmbed(s, m.ChannelID, ui.BuildQueuedEmbed(entry))
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, m *discordgo.MessageCreate) {
	p := h.reg.Peek(m.GuildID)
	if p == nil {
		reply(s, m.ChannelID, "No music is playing right now.")
		return
	}
	p.Skip()
	reply(s, m.ChannelID, "Skipped.")
}

func (h *CommandHandler) cmdPause(s *discordgo.Session, m *discordgo.MessageCreate) {
	p := h.reg.Peek(m.GuildID)
	if p == nil || !p.Voice().IsPlaying() {
		reply(s, m.ChannelID, "Nothing is playing.")
		return
	}
	p.Pause()
	reply(s, m.ChannelID, "Paused.")
}

func (h *CommandHandler) cmdResume(s *discordgo.Session, m *discordgo.MessageCreate) {
	p := h.reg.Peek(m.GuildID)
	if p == nil || !p.Voice().IsPaused() {
		reply(s, m.ChannelID, "Nothing is paused.")
		return
	}
	p.Resume()
	reply(s, m.ChannelID, "Resumed.")
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, m *discordgo.MessageCreate) {
	p := h.reg.Peek(m.GuildID)
	if p == nil {
		reply(s, m.ChannelID, "Nothing to stop.")
		return
	}
	p.Stop()
	reply(s, m.ChannelID, "Stopped and cleared the queue.")
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, m *discordgo.MessageCreate) {
	p := h.reg.Peek(m.GuildID)
	if p == nil {
		reply(s, m.ChannelID, "Nothing is playing.")
		return
	}
	pageSize := h.queuePageSize(context.Background(), m.GuildID)
	embed := ui.BuildQueueEmbed(guildName(s, m.GuildID), p.Current(), p.Upcoming(pageSize), pageSize)
	if embed == nil {
		reply(s, m.ChannelID, "Queue is empty.")
		return
	}
	replyEmbed(s, m.ChannelID, embed)
}

func (h *CommandHandler) cmdLeave(s *discordgo.Session, m *discordgo.MessageCreate) {
	p := h.reg.Peek(m.GuildID)
	if p == nil {
		reply(s, m.ChannelID, "I'm not in a voice channel.")
		return
	}
	h.reg.Disconnect(m.GuildID)
	reply(s, m.ChannelID, "Left voice channel.")
}

const settingsUsage = "Usage: !settings [idle <seconds>|pagesize <count>]"

// cmdSettings shows the guild's effective settings, or updates one of them.
func (h *CommandHandler) cmdSettings(s *discordgo.Session, m *discordgo.MessageCreate, arg string) {
	ctx := context.Background()
	st, err := h.repo.UpsertSettings(ctx, m.GuildID)
	if err != nil {
		slog.Error("load guild settings failed", "guildID", m.GuildID, "err", err)
		reply(s, m.ChannelID, "Settings are unavailable right now.")
		return
	}

	fields := strings.Fields(arg)
	if len(fields) == 0 {
		idle := st.IdleTimeoutSec
		if idle == 0 {
			idle = h.cfg.IdleTimeoutSec
		}
		reply(s, m.ChannelID, fmt.Sprintf("Idle timeout: %ds. Queue page size: %d.", idle, st.QueuePageSize))
		return
	}
	if len(fields) != 2 {
		reply(s, m.ChannelID, settingsUsage)
		return
	}
	if err := applySetting(st, fields[0], fields[1]); err != nil {
		reply(s, m.ChannelID, settingsUsage)
		return
	}
	if err := h.repo.UpdateSettings(ctx, st); err != nil {
		slog.Error("save guild settings failed", "guildID", m.GuildID, "err", err)
		reply(s, m.ChannelID, "Could not save settings.")
		return
	}
	reply(s, m.ChannelID, "Settings updated.")
}

const maxQueuePageSize = 30

// applySetting mutates st for one "!settings <key> <value>" pair. The idle
// override takes effect when the guild's player is next created.
func applySetting(st *repository.Settings, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("value must be a positive number")
	}
	switch key {
	case "idle":
		st.IdleTimeoutSec = n
	case "pagesize":
		if n > maxQueuePageSize {
			n = maxQueuePageSize
		}
		st.QueuePageSize = n
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// guildOptions folds the guild's stored settings over the process defaults.
// The settings row is created on first use.
func (h *CommandHandler) guildOptions(ctx context.Context, guildID string) player.Options {
	opts := player.Options{
		IdleTimeout: time.Duration(h.cfg.IdleTimeoutSec) * time.Second,
	}
	st, err := h.repo.UpsertSettings(ctx, guildID)
	if err != nil {
		slog.Warn("guild settings unavailable", "guildID", guildID, "err", err)
		return opts
	}
	if st.IdleTimeoutSec > 0 {
		opts.IdleTimeout = time.Duration(st.IdleTimeoutSec) * time.Second
	}
	return opts
}

func (h *CommandHandler) queuePageSize(ctx context.Context, guildID string) int {
	st, err := h.repo.GetSettings(ctx, guildID)
	if err != nil || st.QueuePageSize <= 0 {
		return repository.DefaultQueuePageSize
	}
	return st.QueuePageSize
}

func reply(s *discordgo.Session, channelID, text string) {
	if _, err := s.ChannelMessageSend(channelID, text); err != nil {
		slog.Error("send message failed", "channelID", channelID, "err", err)
	}
}

func replyEmbed(s *discordgo.Session, channelID string, embed *discordgo.MessageEmbed) {
	if _, err := s.ChannelMessageSendEmbed(channelID, embed); err != nil {
		slog.Error("send embed failed", "channelID", channelID, "err", err)
	}
}

func userVoiceChannel(s *discordgo.Session, guildID, userID string) string {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func guildName(s *discordgo.Session, guildID string) string {
	g, _ := s.State.Guild(guildID)
	if g == nil || g.Name == "" {
		return "this server"
	}
	return g.Name
}
