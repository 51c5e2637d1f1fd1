package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"voicewatch/internal/weather"
)

func buildWeatherMenu(ownerID string) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       "☀️ 天氣查詢",
		Description: "選擇想查詢的縣市",
		Color:       0xAED6F1,
	}

	options := make([]discordgo.SelectMenuOption, 0, len(weather.Cities))
	for _, city := range weather.Cities {
		options = append(options, discordgo.SelectMenuOption{Label: city, Value: city})
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    joinCustomID("weather_select", ownerID),
				Placeholder: "選擇縣市",
				Options:     options,
			},
		}},
	}
	return embed, components
}

func (b *Bot) showWeatherMenu(s *discordgo.Session, i *discordgo.InteractionCreate, _ []string) {
	embed, components := buildWeatherMenu(interactionUserID(i))
	updateMessage(s, i, embed, components)
}

func (b *Bot) showWeatherReport(s *discordgo.Session, i *discordgo.InteractionCreate, _ []string) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	city := values[0]
	ownerID := interactionUserID(i)

	if err := deferUpdate(s, i); err != nil {
		b.logger.Error("failed to defer weather update", "error", err)
		return
	}

	report, err := b.weather.FetchWeather(city)
	if err != nil {
		embed := &discordgo.MessageEmbed{
			Title:       "☀️ 天氣查詢",
			Description: "暫時查不到天氣資料，請稍後再試",
			Color:       0xE74C3C,
		}
		_ = editMessage(s, i, embed, weatherActionRow(ownerID))
		return
	}

	if err := editMessage(s, i, buildWeatherEmbed(report), weatherActionRow(ownerID)); err != nil {
		b.logger.Error("failed to edit weather message", "error", err)
	}
}

func weatherActionRow(ownerID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "其他縣市", Emoji: &discordgo.ComponentEmoji{Name: "🗺️"}, Style: discordgo.SecondaryButton, CustomID: joinCustomID("menu_weather", ownerID)},
		}},
	}
}

// buildWeatherEmbed renders the live observation plus the next forecast
// slots. The embed color follows the current (or first forecast) weather.
func buildWeatherEmbed(report *weather.Report) *discordgo.MessageEmbed {
	desc := ""
	if report.Observation != nil {
		desc = report.Observation.WeatherDesc
	} else if len(report.Forecasts) > 0 {
		desc = report.Forecasts[0].Weather
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s %s 天氣", weather.EmojiFor(desc), report.Location),
		Color: weather.ColorFor(desc),
	}

	if obs := report.Observation; obs != nil {
		lines := []string{
			fmt.Sprintf("%s %s，氣溫 %.1f°C", weather.EmojiFor(obs.WeatherDesc), obs.WeatherDesc, obs.Temperature),
		}
		if obs.Humidity != nil {
			lines = append(lines, fmt.Sprintf("💧 濕度 %.0f%%", *obs.Humidity))
		}
		if obs.WindSpeed != nil {
			lines = append(lines, fmt.Sprintf("💨 風速 %.1f m/s", *obs.WindSpeed))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("目前天氣（%s 測站 %s）", obs.StationName, obs.ObservedAt.Format("15:04")),
			Value: strings.Join(lines, "\n"),
		})
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "穿著建議",
			Value: weather.ClothingAdvice(obs.Temperature),
		})
	}

	if len(report.Forecasts) > 0 {
		forecasts := report.Forecasts
		if len(forecasts) > weather.ForecastSlots {
			forecasts = forecasts[:weather.ForecastSlots]
		}

		maxRainProb := 0
		lines := make([]string, 0, len(forecasts))
		for _, f := range forecasts {
			line := fmt.Sprintf("`%s` %s %s %.0f°C", f.TimeLabel, f.Emoji, f.Weather, f.Temperature)
			if f.RainProb > 0 {
				line += fmt.Sprintf("，降雨 %d%%", f.RainProb)
			}
			if f.RainProb > maxRainProb {
				maxRainProb = f.RainProb
			}
			lines = append(lines, line)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "未來天氣",
			Value: strings.Join(lines, "\n"),
		})
		if advice := weather.RainAdvice(maxRainProb); advice != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: advice}
		}
	}

	if report.Observation == nil && len(report.Forecasts) == 0 {
		embed.Description = "目前沒有可用的天氣資料"
	}
	return embed
}
