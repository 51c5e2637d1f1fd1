// Package discord wires the gateway events and interactions to the tracking
// engine and the menu features.
package discord

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"voicewatch/internal/config"
	"voicewatch/internal/currency"
	"voicewatch/internal/models"
	"voicewatch/internal/tracker"
	"voicewatch/internal/weather"
)

// Bot owns the gateway session and routes events to the feature handlers.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config
	logger  *slog.Logger

	tracker  *tracker.Tracker
	currency *currency.Service
	weather  *weather.Service

	readyOnce sync.Once
	readyCh   chan struct{}
}

// New creates the bot and registers its gateway handlers. The session is not
// opened until Start.
func New(cfg *config.Config, logger *slog.Logger, trk *tracker.Tracker, currencySvc *currency.Service, weatherSvc *weather.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := &Bot{
		session:  session,
		cfg:      cfg,
		logger:   logger,
		tracker:  trk,
		currency: currencySvc,
		weather:  weatherSvc,
		readyCh:  make(chan struct{}),
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onVoiceStateUpdate)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	return bot, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

// Ready is closed once the first ready event has been processed, meaning
// reconciliation ran and commands are registered.
func (b *Bot) Ready() <-chan struct{} {
	return b.readyCh
}

// onReady reconciles persisted sessions against who is actually in voice,
// then registers the slash commands. Gateway reconnects fire Ready again, so
// both run only once per process.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("connected to Discord",
		"username", r.User.Username, "guilds", len(r.Guilds))

	b.readyOnce.Do(func() {
		snapshot := b.buildPresenceSnapshot(s)
		if err := b.tracker.ReconcileActiveSessions(snapshot); err != nil {
			b.logger.Error("failed to reconcile sessions at startup", "error", err)
		}
		if err := b.registerCommands(s); err != nil {
			b.logger.Error("failed to register commands", "error", err)
		}
		close(b.readyCh)
	})
}

// buildPresenceSnapshot collects who is in which voice channel right now,
// skipping bot accounts.
func (b *Bot) buildPresenceSnapshot(s *discordgo.Session) models.PresenceSnapshot {
	snapshot := make(models.PresenceSnapshot)
	for _, guild := range s.State.Guilds {
		for _, vs := range guild.VoiceStates {
			if vs.ChannelID == "" {
				continue
			}
			if member, err := s.State.Member(guild.ID, vs.UserID); err == nil && member.User != nil && member.User.Bot {
				continue
			}
			snapshot[models.SessionKey{GuildID: guild.ID, UserID: vs.UserID}] = vs.ChannelID
		}
	}
	return snapshot
}

// onVoiceStateUpdate translates gateway voice transitions into session
// operations. A channel move is a close plus an open so time is credited to
// the channel it was spent in.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.Member != nil && e.Member.User != nil && e.Member.User.Bot {
		return
	}

	var before string
	if e.BeforeUpdate != nil {
		before = e.BeforeUpdate.ChannelID
	}
	after := e.ChannelID

	switch {
	case before == "" && after != "":
		if err := b.tracker.StartSession(e.GuildID, e.UserID, after); err != nil {
			b.logger.Error("failed to start session", "guild", e.GuildID, "user", e.UserID, "error", err)
		}
	case before != "" && after == "":
		if err := b.tracker.EndSession(e.GuildID, e.UserID); err != nil {
			b.logger.Error("failed to end session", "guild", e.GuildID, "user", e.UserID, "error", err)
		}
	case before != "" && after != "" && before != after:
		if err := b.tracker.EndSession(e.GuildID, e.UserID); err != nil {
			b.logger.Error("failed to end session on move", "guild", e.GuildID, "user", e.UserID, "error", err)
		}
		if err := b.tracker.StartSession(e.GuildID, e.UserID, after); err != nil {
			b.logger.Error("failed to restart session on move", "guild", e.GuildID, "user", e.UserID, "error", err)
		}
	}
}

// onMessageCreate answers a direct mention with the feature menu.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	mentioned := false
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}
	if !mentioned {
		return
	}

	embed, components := buildFeatureMenu(m.Author.ID)
	_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
		Reference:  m.Reference(),
	})
	if err != nil {
		b.logger.Error("failed to send feature menu", "channel", m.ChannelID, "error", err)
	}
}

// onInteractionCreate dispatches slash commands, autocomplete, and component
// clicks.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// interactionUserID resolves the invoking user in both guild and DM shapes.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
