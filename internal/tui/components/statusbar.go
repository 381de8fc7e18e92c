package components

import (
	"nathanbeddoewebdev/dialctl/internal/perf/notify"
	"nathanbeddoewebdev/dialctl/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

// StatusBar renders a status message line between the content and footer.
func StatusBar(width int, message string, isError bool) string {
	if message == "" {
		return ""
	}

	style := styles.MutedText
	if isError {
		style = styles.ErrorText
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 2).
		Render(style.Render(message))
}

// NoticeBar renders a transient notice in the status line, colored by its
// level.
func NoticeBar(width int, n notify.Notice) string {
	if n.Message == "" {
		return ""
	}

	var style lipgloss.Style
	switch n.Level {
	case notify.LevelError:
		style = styles.ErrorText
	case notify.LevelWarning:
		style = styles.WarningText
	case notify.LevelSuccess:
		style = styles.SuccessText
	default:
		style = styles.AccentText
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 2).
		Render(style.Render(n.Text()))
}
