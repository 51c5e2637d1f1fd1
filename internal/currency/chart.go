package currency

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
)

const (
	chartHeight = 10
	chartWidth  = 48
)

// RenderChart plots a rate history as an ASCII line chart sized for a
// Discord embed code block. Returns "" when the history is too short to
// plot.
func RenderChart(history []Point, caption string) string {
	if len(history) < 2 {
		return ""
	}
	data := make([]float64, 0, len(history))
	for _, p := range history {
		data = append(data, p.Rate)
	}
	return asciigraph.Plot(data,
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Caption(caption),
	)
}

// ChartCaption labels a chart with the pair and window, in ASCII so the
// plot's column alignment survives Discord's monospace rendering.
func ChartCaption(code string, days int) string {
	return fmt.Sprintf("%s/%s, last %d days", code, BaseCurrency, days)
}
