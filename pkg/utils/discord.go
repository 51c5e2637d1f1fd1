package utils

import (
	"fmt"
	"strings"
)

var medalEmojis = []string{"🥇", "🥈", "🥉", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// FormatUserMention formats a user ID as a Discord mention.
func FormatUserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// FormatChannelMention formats a channel ID as a Discord channel mention.
func FormatChannelMention(channelID string) string {
	return fmt.Sprintf("<#%s>", channelID)
}

// MedalForRank returns a medal emoji for the top ten ranks and a plain
// "`#N`" marker beyond that. Rank is 1-based.
func MedalForRank(rank int) string {
	if rank >= 1 && rank <= len(medalEmojis) {
		return medalEmojis[rank-1]
	}
	return fmt.Sprintf("`#%d`", rank)
}

// EscapeMarkdown escapes Discord markdown control characters in a display
// name so member names render literally inside embeds.
func EscapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"*", "\\*",
		"_", "\\_",
		"~", "\\~",
		"`", "\\`",
		"|", "\\|",
		">", "\\>",
	)
	return replacer.Replace(s)
}

// ProgressBar renders value/maxValue as a fixed-width bar of █ and ░ runes.
func ProgressBar(value, maxValue int64, length int) string {
	if maxValue <= 0 {
		return strings.Repeat("░", length)
	}
	ratio := float64(value) / float64(maxValue)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(length))
	return strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
}

// ChunkLines joins lines into chunks whose rendered length stays under
// maxLen, for splitting long lists across embed fields.
func ChunkLines(lines []string, maxLen int) []string {
	var chunks []string
	var buffer []string
	currentLen := 0

	for _, line := range lines {
		lineLen := len(line) + 1
		if len(buffer) > 0 && currentLen+lineLen > maxLen {
			chunks = append(chunks, strings.Join(buffer, "\n"))
			buffer = []string{line}
			currentLen = lineLen
		} else {
			buffer = append(buffer, line)
			currentLen += lineLen
		}
	}
	if len(buffer) > 0 {
		chunks = append(chunks, strings.Join(buffer, "\n"))
	}
	return chunks
}

// TruncateString truncates a string to max length and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
