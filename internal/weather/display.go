package weather

import "strings"

// emojiRules maps weather description keywords to an emoji. Ordered so the
// more severe phenomenon wins when a description mentions several.
var emojiRules = []struct {
	keyword string
	emoji   string
}{
	{"雷", "⛈️"},
	{"雪", "🌨️"},
	{"雨", "🌧️"},
	{"霧", "🌫️"},
	{"陰", "☁️"},
	{"多雲", "⛅"},
	{"晴", "☀️"},
}

// EmojiFor picks an emoji for a CWA weather description.
func EmojiFor(desc string) string {
	for _, rule := range emojiRules {
		if strings.Contains(desc, rule.keyword) {
			return rule.emoji
		}
	}
	return "🌡️"
}

// ColorFor picks a Discord embed color for a weather description.
func ColorFor(desc string) int {
	switch {
	case strings.Contains(desc, "雷"):
		return 0x5B2C6F
	case strings.Contains(desc, "雨"):
		return 0x5DADE2
	case strings.Contains(desc, "陰"):
		return 0x85929E
	case strings.Contains(desc, "多雲"):
		return 0xAED6F1
	case strings.Contains(desc, "晴"):
		return 0xF9E79F
	default:
		return 0x76D7C4
	}
}

// ClothingAdvice suggests what to wear for a temperature in °C.
func ClothingAdvice(temp float64) string {
	switch {
	case temp >= 30:
		return "天氣炎熱，短袖短褲，注意防曬補水 🥵"
	case temp >= 26:
		return "天氣偏熱，輕薄衣物即可 😎"
	case temp >= 22:
		return "天氣舒適，短袖或薄長袖都合適 🙂"
	case temp >= 18:
		return "天氣微涼，建議加件薄外套 🍂"
	case temp >= 14:
		return "天氣偏冷，外套和長褲不可少 🧥"
	case temp >= 10:
		return "天氣寒冷，請穿保暖大衣 🥶"
	default:
		return "天氣酷寒，厚外套圍巾手套都帶上 ⛄"
	}
}

// RainAdvice flags whether an umbrella is worth carrying given the highest
// rain probability across the forecast window.
func RainAdvice(maxRainProb int) string {
	switch {
	case maxRainProb >= 70:
		return "降雨機率很高，出門記得帶傘 ☔"
	case maxRainProb >= 40:
		return "可能會下雨，建議帶把傘備用 🌂"
	default:
		return ""
	}
}
