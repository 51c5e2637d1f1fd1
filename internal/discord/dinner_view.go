package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"voicewatch/internal/dinner"
)

func buildDinnerMenu(ownerID string) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       "🍽️ 晚餐吃什麼",
		Description: "選一個類別，讓我幫你抽今天的晚餐！",
		Color:       0xF5CBA7,
	}

	var rows []discordgo.MessageComponent
	var buttons []discordgo.MessageComponent
	for _, category := range dinner.Categories {
		buttons = append(buttons, discordgo.Button{
			Label:    category.Name,
			Emoji:    &discordgo.ComponentEmoji{Name: category.Emoji},
			Style:    discordgo.SecondaryButton,
			CustomID: joinCustomID("dinner_pick", ownerID, category.Key),
		})
		if len(buttons) == 4 {
			rows = append(rows, discordgo.ActionsRow{Components: buttons})
			buttons = nil
		}
	}
	buttons = append(buttons, discordgo.Button{
		Label:    "都可以，隨便抽",
		Emoji:    &discordgo.ComponentEmoji{Name: "🎲"},
		Style:    discordgo.PrimaryButton,
		CustomID: joinCustomID("dinner_pick", ownerID, "random"),
	})
	rows = append(rows, discordgo.ActionsRow{Components: buttons})

	return embed, rows
}

func (b *Bot) handleDinner(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed, components := buildDinnerMenu(interactionUserID(i))
	respondEmbed(s, i, embed, components)
}

func (b *Bot) showDinnerMenu(s *discordgo.Session, i *discordgo.InteractionCreate, _ []string) {
	embed, components := buildDinnerMenu(interactionUserID(i))
	updateMessage(s, i, embed, components)
}

func (b *Bot) drawDinner(s *discordgo.Session, i *discordgo.InteractionCreate, extra []string) {
	key := "random"
	if len(extra) > 0 {
		key = extra[0]
	}
	result := dinner.Draw(key)
	ownerID := interactionUserID(i)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s 今晚就吃 %s！", result.Category.Emoji, result.Food),
		Description: result.Tip,
		Color:       result.Category.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "類別", Value: result.Category.Name, Inline: true},
			{Name: "配餐", Value: result.Side, Inline: true},
			{Name: "飲料", Value: result.Drink, Inline: true},
		},
	}
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "再抽一次", Emoji: &discordgo.ComponentEmoji{Name: "🎲"}, Style: discordgo.PrimaryButton, CustomID: joinCustomID("dinner_pick", ownerID, result.Category.Key)},
			discordgo.Button{Label: "換個類別", Emoji: &discordgo.ComponentEmoji{Name: "🍽️"}, Style: discordgo.SecondaryButton, CustomID: joinCustomID("menu_dinner", ownerID)},
		}},
	}
	updateMessage(s, i, embed, components)
}
