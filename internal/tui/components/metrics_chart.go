package components

import (
	"fmt"

	"nathanbeddoewebdev/dialctl/internal/tui/styles"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"
)

// chartHeight is the fixed height for all metric sparklines.
const chartHeight = 5

// MetricsChart renders a single-series sparkline with a label header and a
// cur/min/max summary. Data is expected oldest first.
func MetricsChart(label string, data []float64, width int, suffix string) string {
	if len(data) == 0 {
		return styles.MutedText.Render(label + ": no data")
	}

	plotWidth := max(width-2, 10)

	sl := sparkline.New(plotWidth, chartHeight,
		sparkline.WithStyle(lipgloss.NewStyle().Foreground(styles.Blue)),
	)
	// The sparkline keeps the newest plotWidth points.
	if len(data) > plotWidth {
		sl.PushAll(data[len(data)-plotWidth:])
	} else {
		sl.PushAll(data)
	}
	sl.Draw()

	current := data[len(data)-1]
	lo, hi := minMax(data)
	summary := styles.MutedText.Render(
		fmt.Sprintf("  cur: %s  min: %s  max: %s",
			formatValue(current, suffix),
			formatValue(lo, suffix),
			formatValue(hi, suffix),
		),
	)

	header := styles.Label.Render(label)
	return lipgloss.JoinVertical(lipgloss.Left, header, sl.View(), summary)
}

// minMax returns the minimum and maximum values from a slice.
func minMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// formatValue renders a float with an optional suffix, using human-readable
// formatting for large values.
func formatValue(v float64, suffix string) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM%s", v/1_000_000, suffix)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK%s", v/1_000, suffix)
	default:
		return fmt.Sprintf("%.1f%s", v, suffix)
	}
}
