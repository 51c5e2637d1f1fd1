package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"voicewatch/internal/currency"
)

func buildCurrencyMenu(ownerID string) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       "💱 匯率查詢",
		Description: fmt.Sprintf("選擇想查詢的貨幣，匯率以 %s 計價", currency.BaseCurrency),
		Color:       0xF5B041,
	}

	var options []discordgo.SelectMenuOption
	for _, group := range currency.Groups {
		for _, info := range group.Currencies {
			options = append(options, discordgo.SelectMenuOption{
				Label:       fmt.Sprintf("%s %s", info.Name, info.Code),
				Value:       info.Code,
				Description: group.Name,
				Emoji:       &discordgo.ComponentEmoji{Name: info.Emoji},
			})
		}
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    joinCustomID("money_select", ownerID),
				Placeholder: "選擇貨幣",
				Options:     options,
			},
		}},
	}
	return embed, components
}

func (b *Bot) handleMoney(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed, components := buildCurrencyMenu(interactionUserID(i))
	respondEmbed(s, i, embed, components)
}

func (b *Bot) showCurrencyMenu(s *discordgo.Session, i *discordgo.InteractionCreate, _ []string) {
	embed, components := buildCurrencyMenu(interactionUserID(i))
	updateMessage(s, i, embed, components)
}

func (b *Bot) showCurrencyRate(s *discordgo.Session, i *discordgo.InteractionCreate, _ []string) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	b.renderCurrencyRate(s, i, values[0], false)
}

func (b *Bot) refreshCurrencyRate(s *discordgo.Session, i *discordgo.InteractionCreate, extra []string) {
	if len(extra) == 0 {
		return
	}
	b.renderCurrencyRate(s, i, extra[0], true)
}

// renderCurrencyRate fetches the live rate and history, then swaps the menu
// message for the rate card. The fetch can take a few seconds so the update
// is deferred first.
func (b *Bot) renderCurrencyRate(s *discordgo.Session, i *discordgo.InteractionCreate, code string, forceRefresh bool) {
	ownerID := interactionUserID(i)
	if err := deferUpdate(s, i); err != nil {
		b.logger.Error("failed to defer currency update", "error", err)
		return
	}

	rate, err := b.currency.GetCurrentRate(code, forceRefresh)
	if err != nil {
		b.logger.Warn("currency rate unavailable", "currency", code, "error", err)
		embed := &discordgo.MessageEmbed{
			Title:       "💱 匯率查詢",
			Description: "暫時查不到匯率，請稍後再試",
			Color:       0xE74C3C,
		}
		_ = editMessage(s, i, embed, currencyActionRow(ownerID, code))
		return
	}

	history := b.currency.GetHistoryRates(code, currency.HistoryDays)
	embed := buildCurrencyEmbed(rate, history)
	if err := editMessage(s, i, embed, currencyActionRow(ownerID, code)); err != nil {
		b.logger.Error("failed to edit currency message", "error", err)
	}
}

func currencyActionRow(ownerID, code string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "重新整理", Emoji: &discordgo.ComponentEmoji{Name: "🔄"}, Style: discordgo.SecondaryButton, CustomID: joinCustomID("money_refresh", ownerID, code)},
			discordgo.Button{Label: "其他貨幣", Emoji: &discordgo.ComponentEmoji{Name: "💱"}, Style: discordgo.SecondaryButton, CustomID: joinCustomID("menu_money", ownerID)},
		}},
	}
}

func buildCurrencyEmbed(rate currency.Rate, history []currency.Point) *discordgo.MessageEmbed {
	info, _ := currency.Lookup(rate.Currency)
	title := fmt.Sprintf("%s %s %s 匯率", info.Emoji, info.Name, rate.Currency)

	conversionLines := make([]string, 0, 4)
	for _, amount := range []float64{1, 10, 100, 1000} {
		conversionLines = append(conversionLines, fmt.Sprintf("%.0f %s = %.2f %s",
			amount, rate.Currency, amount*rate.Rate, currency.BaseCurrency))
	}

	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: 0xF5B041,
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("1 %s", rate.Currency), Value: fmt.Sprintf("%.4f %s", rate.Rate, currency.BaseCurrency), Inline: true},
			{Name: fmt.Sprintf("1 %s", currency.BaseCurrency), Value: fmt.Sprintf("%.4f %s", rate.InverseRate, rate.Currency), Inline: true},
			{Name: "快速換算", Value: strings.Join(conversionLines, "\n")},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "資料每 5 分鐘更新一次"},
		Timestamp: rate.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	if len(history) >= 2 {
		change := currency.ChangePercent(history)
		arrow := "📈"
		if change < 0 {
			arrow = "📉"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("%d 天變化", currency.HistoryDays),
			Value:  fmt.Sprintf("%s %+.2f%%", arrow, change),
			Inline: true,
		})

		if monthly := currency.MonthlyAverages(history, 3); len(monthly) > 0 {
			lines := make([]string, 0, len(monthly))
			for _, point := range monthly {
				lines = append(lines, fmt.Sprintf("%s 平均 %.4f", point.Date, point.Rate))
			}
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   "月均匯率",
				Value:  strings.Join(lines, "\n"),
				Inline: true,
			})
		}

		chart := currency.RenderChart(history, currency.ChartCaption(rate.Currency, currency.HistoryDays))
		if chart != "" {
			embed.Description = fmt.Sprintf("```\n%s\n```", chart)
		}
	}
	return embed
}
