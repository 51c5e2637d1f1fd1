package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"voicewatch/internal/models"
)

// Component custom IDs carry "action:ownerID[:extra]". The owner is whoever
// opened the menu; everyone else gets an ephemeral refusal so a shared menu
// cannot be hijacked mid-flow.

func joinCustomID(parts ...string) string {
	return strings.Join(parts, ":")
}

type componentHandler func(b *Bot, s *discordgo.Session, i *discordgo.InteractionCreate, extra []string)

var componentHandlers = map[string]componentHandler{
	"menu_time":      (*Bot).showLeaderboardView,
	"time_bucket":    (*Bot).switchLeaderboardBucket,
	"menu_money":     (*Bot).showCurrencyMenu,
	"money_select":   (*Bot).showCurrencyRate,
	"money_refresh":  (*Bot).refreshCurrencyRate,
	"menu_dinner":    (*Bot).showDinnerMenu,
	"dinner_pick":    (*Bot).drawDinner,
	"menu_weather":   (*Bot).showWeatherMenu,
	"weather_select": (*Bot).showWeatherReport,
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	parts := strings.Split(i.MessageComponentData().CustomID, ":")
	if len(parts) < 2 {
		b.logger.Warn("malformed component id", "custom_id", i.MessageComponentData().CustomID)
		return
	}
	action, owner, extra := parts[0], parts[1], parts[2:]

	handler, ok := componentHandlers[action]
	if !ok {
		b.logger.Warn("unknown component action", "action", action)
		return
	}
	if interactionUserID(i) != owner {
		respondEphemeral(s, i, "這不是你的選單，標註我開一個新的吧")
		return
	}
	handler(b, s, i, extra)
}

// buildFeatureMenu is the entry menu shown when someone mentions the bot.
func buildFeatureMenu(ownerID string) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title: "✨ 功能選單",
		Description: strings.Join([]string{
			"🎧 **語音時間** — 查看語音時間排行榜",
			"💱 **匯率查詢** — 查詢台幣匯率與走勢",
			"🍽️ **晚餐吃什麼** — 讓我幫你決定晚餐",
			"☀️ **天氣查詢** — 台灣各縣市天氣",
		}, "\n"),
		Color: 0x76D7C4,
	}
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "語音時間", Emoji: &discordgo.ComponentEmoji{Name: "🎧"}, Style: discordgo.PrimaryButton, CustomID: joinCustomID("menu_time", ownerID)},
			discordgo.Button{Label: "匯率查詢", Emoji: &discordgo.ComponentEmoji{Name: "💱"}, Style: discordgo.SecondaryButton, CustomID: joinCustomID("menu_money", ownerID)},
			discordgo.Button{Label: "晚餐吃什麼", Emoji: &discordgo.ComponentEmoji{Name: "🍽️"}, Style: discordgo.SecondaryButton, CustomID: joinCustomID("menu_dinner", ownerID)},
			discordgo.Button{Label: "天氣查詢", Emoji: &discordgo.ComponentEmoji{Name: "☀️"}, Style: discordgo.SecondaryButton, CustomID: joinCustomID("menu_weather", ownerID)},
		}},
	}
	return embed, components
}

func (b *Bot) showLeaderboardView(s *discordgo.Session, i *discordgo.InteractionCreate, _ []string) {
	b.updateLeaderboardMessage(s, i, models.BucketWeekly)
}

func (b *Bot) switchLeaderboardBucket(s *discordgo.Session, i *discordgo.InteractionCreate, extra []string) {
	bucket := models.BucketWeekly
	if len(extra) > 0 && models.Bucket(extra[0]).Valid() {
		bucket = models.Bucket(extra[0])
	}
	b.updateLeaderboardMessage(s, i, bucket)
}

func (b *Bot) updateLeaderboardMessage(s *discordgo.Session, i *discordgo.InteractionCreate, bucket models.Bucket) {
	viewerID := interactionUserID(i)
	embed, err := b.buildLeaderboardEmbed(s, i.GuildID, bucket, viewerID)
	if err != nil {
		b.logger.Error("failed to build leaderboard view", "guild", i.GuildID, "bucket", bucket, "error", err)
		respondEphemeral(s, i, "查詢失敗，請稍後再試")
		return
	}
	updateMessage(s, i, embed, bucketSwitchRow(viewerID, bucket))
}

// Message update helpers for component flows.

func updateMessage(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func deferUpdate(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func editMessage(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	})
	return err
}
