package utils

import "fmt"

// FormatDuration formats a second count as "HH小時 MM分鐘 SS秒".
// Negative inputs are treated as zero.
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d小時 %02d分鐘 %02d秒", h, m, s)
}
