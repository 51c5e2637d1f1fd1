package discord

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicewatch/internal/config"
	"voicewatch/internal/currency"
	"voicewatch/internal/database"
	"voicewatch/internal/models"
	"voicewatch/internal/tracker"
	"voicewatch/internal/weather"
)

func newTestBot(t *testing.T) (*Bot, *database.Repository) {
	t.Helper()
	db, err := database.New(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := database.NewRepository(db)
	bot := &Bot{
		cfg:     &config.Config{MaintainerID: "maintainer"},
		logger:  slog.Default(),
		tracker: tracker.New(repo, slog.Default(), time.UTC, 10),
	}
	return bot, repo
}

func newTestSession(t *testing.T) *discordgo.Session {
	t.Helper()
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{ID: "g1"}))
	require.NoError(t, state.MemberAdd(&discordgo.Member{
		GuildID: "g1",
		Nick:    "小明",
		User:    &discordgo.User{ID: "u1", Username: "ming"},
	}))
	require.NoError(t, state.MemberAdd(&discordgo.Member{
		GuildID: "g1",
		User:    &discordgo.User{ID: "u2", Username: "hua"},
	}))
	return &discordgo.Session{State: state}
}

func seedVoiceTime(t *testing.T, repo *database.Repository, guildID, userID string, seconds int64) {
	t.Helper()
	require.NoError(t, repo.AddSeconds(guildID, userID, seconds, time.Now().UTC()))
}

func TestBuildLeaderboardEmbed(t *testing.T) {
	bot, repo := newTestBot(t)
	s := newTestSession(t)

	seedVoiceTime(t, repo, "g1", "u1", 3600)
	seedVoiceTime(t, repo, "g1", "u2", 60)

	embed, err := bot.buildLeaderboardEmbed(s, "g1", models.BucketWeekly, "u2")
	require.NoError(t, err)
	assert.Equal(t, bucketMeta[models.BucketWeekly].Title, embed.Title)
	assert.Contains(t, embed.Description, "🥇 小明")
	assert.Contains(t, embed.Description, "🥈 hua ⭐")
	assert.Contains(t, embed.Description, "01小時 00分鐘 00秒")
	assert.Empty(t, embed.Fields, "listed viewer needs no extra rank field")
}

func TestBuildLeaderboardEmbedEmpty(t *testing.T) {
	bot, _ := newTestBot(t)
	s := newTestSession(t)

	embed, err := bot.buildLeaderboardEmbed(s, "g1", models.BucketMonthly, "u1")
	require.NoError(t, err)
	assert.Contains(t, embed.Description, "還沒有任何語音紀錄")
}

func TestBuildLeaderboardEmbedViewerOutsideTop(t *testing.T) {
	bot, repo := newTestBot(t)
	bot.tracker = tracker.New(repo, slog.Default(), time.UTC, 1)
	s := newTestSession(t)

	seedVoiceTime(t, repo, "g1", "u1", 3600)
	seedVoiceTime(t, repo, "g1", "u2", 60)

	embed, err := bot.buildLeaderboardEmbed(s, "g1", models.BucketWeekly, "u2")
	require.NoError(t, err)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "你的排名", embed.Fields[0].Name)
	assert.Contains(t, embed.Fields[0].Value, "#2")
}

func TestBuildMemberStatsEmbed(t *testing.T) {
	bot, repo := newTestBot(t)
	s := newTestSession(t)
	seedVoiceTime(t, repo, "g1", "u1", 90)

	embed, err := bot.buildMemberStatsEmbed(s, "g1", &discordgo.User{ID: "u1"})
	require.NoError(t, err)
	require.Len(t, embed.Fields, 4)
	assert.Contains(t, embed.Fields[0].Value, "第 1 名")

	embed, err = bot.buildMemberStatsEmbed(s, "g1", &discordgo.User{ID: "nobody"})
	require.NoError(t, err)
	assert.Contains(t, embed.Description, "還沒有任何語音紀錄")
}

func TestDisplayName(t *testing.T) {
	bot, _ := newTestBot(t)
	s := newTestSession(t)

	assert.Equal(t, "小明", bot.displayName(s, "g1", "u1"))
	assert.Equal(t, "hua", bot.displayName(s, "g1", "u2"))
	assert.Equal(t, "<@ghost>", bot.displayName(s, "g1", "ghost"))
}

func TestBucketSwitchRowDisablesCurrent(t *testing.T) {
	row := bucketSwitchRow("owner", models.BucketMonthly)
	require.Len(t, row, 1)
	buttons := row[0].(discordgo.ActionsRow).Components
	require.Len(t, buttons, 4)

	for idx, bucket := range models.Buckets {
		button := buttons[idx].(discordgo.Button)
		assert.Equal(t, "time_bucket:owner:"+string(bucket), button.CustomID)
		assert.Equal(t, bucket == models.BucketMonthly, button.Disabled)
	}
}

func TestBuildFeatureMenuOwnership(t *testing.T) {
	_, components := buildFeatureMenu("owner123")
	require.Len(t, components, 1)
	buttons := components[0].(discordgo.ActionsRow).Components
	require.Len(t, buttons, 4)
	for _, component := range buttons {
		button := component.(discordgo.Button)
		parts := strings.Split(button.CustomID, ":")
		require.Len(t, parts, 2)
		assert.Equal(t, "owner123", parts[1])
		_, ok := componentHandlers[parts[0]]
		assert.True(t, ok, "unrouted action in %s", button.CustomID)
	}
}

func TestBuildCurrencyMenuListsAllCurrencies(t *testing.T) {
	_, components := buildCurrencyMenu("owner")
	menu := components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Equal(t, "money_select:owner", menu.CustomID)

	total := 0
	for _, group := range currency.Groups {
		total += len(group.Currencies)
	}
	assert.Len(t, menu.Options, total)
}

func TestBuildCurrencyEmbed(t *testing.T) {
	rate := currency.Rate{Currency: "USD", Rate: 31.5, InverseRate: 1 / 31.5, UpdatedAt: time.Now()}
	history := []currency.Point{
		{Date: "2025-01-01", Rate: 30},
		{Date: "2025-03-01", Rate: 31.5},
	}

	embed := buildCurrencyEmbed(rate, history)
	assert.Contains(t, embed.Title, "USD")
	require.Len(t, embed.Fields, 5)
	assert.Contains(t, embed.Fields[0].Value, "31.5000 TWD")
	assert.Contains(t, embed.Fields[2].Value, "1000 USD = 31500.00 TWD")
	assert.Contains(t, embed.Fields[3].Value, "+5.00%")
	assert.Equal(t, "月均匯率", embed.Fields[4].Name)
	assert.Contains(t, embed.Description, "```")

	sparse := buildCurrencyEmbed(rate, nil)
	assert.Len(t, sparse.Fields, 3)
	assert.Empty(t, sparse.Description)
}

func TestBuildWeatherEmbed(t *testing.T) {
	humidity := 66.0
	feels := 31.0
	report := &weather.Report{
		Location: "臺北市",
		Observation: &weather.Observation{
			StationName: "臺北",
			Temperature: 28.5,
			Humidity:    &humidity,
			WeatherDesc: "晴",
			ObservedAt:  time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC),
		},
		Forecasts: []weather.HourlyForecast{
			{TimeLabel: "今天 15:00", Weather: "多雲", Emoji: "⛅", Temperature: 29, FeelsLike: &feels, RainProb: 70},
		},
	}

	embed := buildWeatherEmbed(report)
	assert.Contains(t, embed.Title, "臺北市")
	require.Len(t, embed.Fields, 3)
	assert.Contains(t, embed.Fields[0].Value, "28.5°C")
	assert.Contains(t, embed.Fields[0].Value, "濕度 66%")
	assert.Contains(t, embed.Fields[2].Value, "降雨 70%")
	require.NotNil(t, embed.Footer)
	assert.Contains(t, embed.Footer.Text, "傘")
}

func TestBuildWeatherEmbedForecastOnly(t *testing.T) {
	report := &weather.Report{
		Location: "高雄市",
		Forecasts: []weather.HourlyForecast{
			{TimeLabel: "今天 15:00", Weather: "晴", Emoji: "☀️", Temperature: 33},
		},
	}
	embed := buildWeatherEmbed(report)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "未來天氣", embed.Fields[0].Name)

	empty := buildWeatherEmbed(&weather.Report{Location: "高雄市"})
	assert.Contains(t, empty.Description, "沒有可用的天氣資料")
}

func TestIsMaintainer(t *testing.T) {
	bot, _ := newTestBot(t)
	assert.True(t, bot.isMaintainer("maintainer"))
	assert.False(t, bot.isMaintainer("someone"))

	bot.cfg.MaintainerID = ""
	assert.False(t, bot.isMaintainer(""), "empty maintainer config disables the gate")
}
