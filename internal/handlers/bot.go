package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/metrolist/metrobot/internal/config"
	"github.com/metrolist/metrobot/internal/player"
	"github.com/metrolist/metrobot/internal/repository"
)

type Bot struct {
	cfg *config.Config
	reg *player.Registry
	cmd *CommandHandler
}

func NewBot(cfg *config.Config, repo *repository.Repo, res player.Resolver) *Bot {
	opts := player.Options{
		IdleTimeout: time.Duration(cfg.IdleTimeoutSec) * time.Second,
	}
	reg := player.NewRegistry(res, opts)
	cmd := NewCommandHandler(cfg, repo, reg)
	return &Bot{cfg: cfg, reg: reg, cmd: cmd}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("logged in", "user", s.State.User.Username, "id", s.State.User.ID)
		slog.Info("ready")
	})

	dg.AddHandler(b.cmd.HandleMessage)

	// leave-if-no-listeners: a voice state change can empty the bot's
	// channel long before the idle timer would notice
	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		gid := vs.GuildID
		p := b.reg.Peek(gid)
		if p == nil {
			return
		}
		chID := p.Voice().ChannelID()
		if chID == "" {
			return
		}
		if getNonBotSize(s, gid, chID) == 0 {
			slog.Info("no listeners left, disconnecting", "guildID", gid)
			b.reg.Disconnect(gid)
		}
	})

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	return nil
}

func getNonBotSize(s *discordgo.Session, guildID, channelID string) int {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			m, _ := s.State.Member(guildID, vs.UserID)
			if m != nil && m.User != nil && !m.User.Bot {
				n++
			}
		}
	}
	return n
}
