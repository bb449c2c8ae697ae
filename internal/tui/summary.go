package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// RenderMarkdown renders md for the terminal. When styling fails the raw
// Markdown is returned so the text is never lost.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if os.Getenv("NO_COLOR") != "" || termenv.ColorProfile() == termenv.Ascii {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}
