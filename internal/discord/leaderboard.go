package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"voicewatch/internal/models"
	"voicewatch/pkg/utils"
)

const progressBarWidth = 12

type bucketDisplay struct {
	Title string
	Label string
	Color int
	Hint  string
}

var bucketMeta = map[models.Bucket]bucketDisplay{
	models.BucketWeekly:  {Title: "📅 本週語音時間排行榜", Label: "本週", Color: 0x5DADE2, Hint: "每週一重新計算"},
	models.BucketMonthly: {Title: "🗓️ 本月語音時間排行榜", Label: "本月", Color: 0x58D68D, Hint: "每月 1 號重新計算"},
	models.BucketYearly:  {Title: "🎆 今年語音時間排行榜", Label: "今年", Color: 0xF5B041, Hint: "每年 1 月 1 號重新計算"},
	models.BucketAlltime: {Title: "🏆 總語音時間排行榜", Label: "總計", Color: 0xAF7AC5, Hint: "從加入以來的累計時間"},
}

// buildLeaderboardEmbed renders the top list for one bucket, marking the
// viewer's row and appending their rank when they fall outside the top list.
func (b *Bot) buildLeaderboardEmbed(s *discordgo.Session, guildID string, bucket models.Bucket, viewerID string) (*discordgo.MessageEmbed, error) {
	// Flush first so in-progress voice time shows up in the totals.
	if err := b.tracker.SyncActiveSessions(guildID); err != nil {
		return nil, err
	}
	entries, err := b.tracker.FetchLeaderboard(guildID, bucket)
	if err != nil {
		return nil, err
	}
	meta := bucketMeta[bucket]

	if len(entries) == 0 {
		return &discordgo.MessageEmbed{
			Title:       meta.Title,
			Description: "還沒有任何語音紀錄，進語音頻道聊聊吧！",
			Color:       meta.Color,
		}, nil
	}

	maxSeconds := entries[0].Seconds
	viewerListed := false
	lines := make([]string, 0, len(entries))
	for idx, entry := range entries {
		marker := ""
		if entry.UserID == viewerID {
			marker = " ⭐"
			viewerListed = true
		}
		lines = append(lines, fmt.Sprintf("%s %s%s\n`%s` %s",
			utils.MedalForRank(idx+1),
			b.displayName(s, guildID, entry.UserID),
			marker,
			utils.ProgressBar(entry.Seconds, maxSeconds, progressBarWidth),
			utils.FormatDuration(entry.Seconds),
		))
	}

	embed := &discordgo.MessageEmbed{
		Title:       meta.Title,
		Description: strings.Join(lines, "\n"),
		Color:       meta.Color,
		Footer:      &discordgo.MessageEmbedFooter{Text: meta.Hint},
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	if viewerID != "" && !viewerListed {
		position, err := b.tracker.FetchUserPosition(guildID, viewerID, bucket)
		if err != nil {
			return nil, err
		}
		if position != nil {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "你的排名",
				Value: fmt.Sprintf("`#%d` %s", position.Rank, utils.FormatDuration(position.Seconds)),
			})
		}
	}
	return embed, nil
}

// buildMemberStatsEmbed renders one member's time and rank across all four
// buckets.
func (b *Bot) buildMemberStatsEmbed(s *discordgo.Session, guildID string, target *discordgo.User) (*discordgo.MessageEmbed, error) {
	if err := b.tracker.SyncActiveSessions(guildID); err != nil {
		return nil, err
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎧 %s 的語音時間", b.displayName(s, guildID, target.ID)),
		Color: 0x76D7C4,
	}

	hasAny := false
	for _, bucket := range models.Buckets {
		meta := bucketMeta[bucket]
		position, err := b.tracker.FetchUserPosition(guildID, target.ID, bucket)
		if err != nil {
			return nil, err
		}

		value := "尚無紀錄"
		if position != nil {
			hasAny = true
			value = fmt.Sprintf("%s（第 %d 名）", utils.FormatDuration(position.Seconds), position.Rank)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   meta.Label,
			Value:  value,
			Inline: true,
		})
	}

	if !hasAny {
		embed.Description = "這位成員還沒有任何語音紀錄"
	}
	return embed, nil
}

// displayName prefers the guild nickname, then the global name, then the
// username, falling back to a mention when the member is not cached.
func (b *Bot) displayName(s *discordgo.Session, guildID, userID string) string {
	member, err := s.State.Member(guildID, userID)
	if err != nil || member == nil || member.User == nil {
		return utils.FormatUserMention(userID)
	}
	name := member.Nick
	if name == "" {
		name = member.User.GlobalName
	}
	if name == "" {
		name = member.User.Username
	}
	return utils.EscapeMarkdown(name)
}

// bucketSwitchRow builds the row of buttons for flipping a leaderboard
// between buckets. The current bucket's button is disabled.
func bucketSwitchRow(ownerID string, current models.Bucket) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(models.Buckets))
	for _, bucket := range models.Buckets {
		buttons = append(buttons, discordgo.Button{
			Label:    bucketMeta[bucket].Label,
			Style:    discordgo.SecondaryButton,
			CustomID: joinCustomID("time_bucket", ownerID, string(bucket)),
			Disabled: bucket == current,
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}
