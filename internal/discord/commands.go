package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"voicewatch/internal/models"
	"voicewatch/internal/weather"
)

// timeCommandBuckets maps each leaderboard command to its bucket.
var timeCommandBuckets = map[string]models.Bucket{
	"time":      models.BucketWeekly,
	"timemonth": models.BucketMonthly,
	"timeyear":  models.BucketYearly,
	"timeall":   models.BucketAlltime,
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	memberOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "member",
		Description: "查詢特定成員的語音時間",
	}

	return []*discordgo.ApplicationCommand{
		{Name: "time", Description: "本週語音時間排行榜", Options: []*discordgo.ApplicationCommandOption{memberOption}},
		{Name: "timemonth", Description: "本月語音時間排行榜", Options: []*discordgo.ApplicationCommandOption{memberOption}},
		{Name: "timeyear", Description: "今年語音時間排行榜", Options: []*discordgo.ApplicationCommandOption{memberOption}},
		{Name: "timeall", Description: "總語音時間排行榜", Options: []*discordgo.ApplicationCommandOption{memberOption}},
		{Name: "timeclean", Description: "清除本伺服器的所有語音時間統計（僅限維護者）"},
		{Name: "sync", Description: "立即將進行中的語音時間寫入統計（僅限維護者）"},
		{Name: "money", Description: "查詢匯率"},
		{Name: "dinner", Description: "晚餐吃什麼"},
		{
			Name:        "weather",
			Description: "查詢台灣天氣",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "city",
					Description:  "縣市名稱",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
	}
}

// registerCommands overwrites the global command set so removed commands
// disappear on restart.
func (b *Bot) registerCommands(s *discordgo.Session) error {
	commands, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commandDefinitions())
	if err != nil {
		return fmt.Errorf("failed to overwrite application commands: %w", err)
	}
	b.logger.Info("registered slash commands", "count", len(commands))
	return nil
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name

	if bucket, ok := timeCommandBuckets[name]; ok {
		b.handleTimeCommand(s, i, bucket)
		return
	}

	switch name {
	case "timeclean":
		b.handleTimeClean(s, i)
	case "sync":
		b.handleSync(s, i)
	case "money":
		b.handleMoney(s, i)
	case "dinner":
		b.handleDinner(s, i)
	case "weather":
		b.handleWeatherCommand(s, i)
	default:
		b.logger.Warn("unknown command", "name", name)
	}
}

// handleTimeCommand shows either the leaderboard, or one member's stats when
// the member option is set.
func (b *Bot) handleTimeCommand(s *discordgo.Session, i *discordgo.InteractionCreate, bucket models.Bucket) {
	if i.GuildID == "" {
		respondEphemeral(s, i, "這個指令只能在伺服器裡使用")
		return
	}

	for _, option := range i.ApplicationCommandData().Options {
		if option.Name == "member" {
			target := option.UserValue(s)
			embed, err := b.buildMemberStatsEmbed(s, i.GuildID, target)
			if err != nil {
				b.logger.Error("failed to build member stats", "guild", i.GuildID, "error", err)
				respondEphemeral(s, i, "查詢失敗，請稍後再試")
				return
			}
			respondEmbed(s, i, embed, nil)
			return
		}
	}

	embed, err := b.buildLeaderboardEmbed(s, i.GuildID, bucket, interactionUserID(i))
	if err != nil {
		b.logger.Error("failed to build leaderboard", "guild", i.GuildID, "bucket", bucket, "error", err)
		respondEphemeral(s, i, "查詢失敗，請稍後再試")
		return
	}
	respondEmbed(s, i, embed, bucketSwitchRow(interactionUserID(i), bucket))
}

func (b *Bot) handleTimeClean(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.isMaintainer(interactionUserID(i)) {
		respondEphemeral(s, i, "只有維護者可以使用這個指令")
		return
	}
	if i.GuildID == "" {
		respondEphemeral(s, i, "這個指令只能在伺服器裡使用")
		return
	}

	if err := b.tracker.ClearGuildStats(i.GuildID); err != nil {
		b.logger.Error("failed to clear guild stats", "guild", i.GuildID, "error", err)
		respondEphemeral(s, i, "清除失敗，請稍後再試")
		return
	}
	// Users still in voice start accruing again from this instant.
	if err := b.tracker.ReconcileActiveSessions(b.buildPresenceSnapshot(s)); err != nil {
		b.logger.Error("failed to reconcile after clean", "guild", i.GuildID, "error", err)
	}
	b.logger.Info("guild stats cleared", "guild", i.GuildID, "by", interactionUserID(i))
	respondEphemeral(s, i, "🧹 已清除本伺服器的所有語音時間統計")
}

func (b *Bot) handleSync(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.isMaintainer(interactionUserID(i)) {
		respondEphemeral(s, i, "只有維護者可以使用這個指令")
		return
	}
	if i.GuildID == "" {
		respondEphemeral(s, i, "這個指令只能在伺服器裡使用")
		return
	}

	if err := b.tracker.SyncActiveSessions(i.GuildID); err != nil {
		b.logger.Error("failed to sync sessions", "guild", i.GuildID, "error", err)
		respondEphemeral(s, i, "同步失敗，請稍後再試")
		return
	}
	// Also refresh this guild's command set so new commands show up without
	// waiting for global propagation.
	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, i.GuildID, commandDefinitions()); err != nil {
		b.logger.Error("failed to refresh guild commands", "guild", i.GuildID, "error", err)
	}
	respondEphemeral(s, i, "✅ 已同步語音時間與指令")
}

func (b *Bot) handleWeatherCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var city string
	for _, option := range i.ApplicationCommandData().Options {
		if option.Name == "city" {
			city = option.StringValue()
		}
	}

	if err := deferResponse(s, i); err != nil {
		b.logger.Error("failed to defer weather response", "error", err)
		return
	}

	report, err := b.weather.FetchWeather(city)
	if err != nil {
		editResponseContent(s, i, "找不到這個縣市，支援的範圍是台灣的 22 個縣市")
		return
	}

	embed := buildWeatherEmbed(report)
	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		b.logger.Error("failed to edit weather response", "error", err)
	}
}

// handleAutocomplete suggests city names for the weather command.
func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "weather" {
		return
	}

	var input string
	for _, option := range data.Options {
		if option.Name == "city" && option.Focused {
			input = option.StringValue()
		}
	}
	normalized := weather.NormalizeCity(input)

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, city := range weather.Cities {
		if normalized != "" && !strings.Contains(city, normalized) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: city, Value: city})
		if len(choices) == 25 {
			break
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		b.logger.Error("failed to respond to autocomplete", "error", err)
	}
}

func (b *Bot) isMaintainer(userID string) bool {
	return b.cfg.MaintainerID != "" && userID == b.cfg.MaintainerID
}

// Response helpers.

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func editResponseContent(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
}
