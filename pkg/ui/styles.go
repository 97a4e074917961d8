package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive colors; the Light half is tuned for contrast on white.
var (
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorHeaderText  = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
	ColorSubtext     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}

	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}
	ColorInfo      = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
)

// keyHint is one entry of the footer help line.
type keyHint struct {
	key  string
	desc string
}

var footerHints = []keyHint{
	{"j/k", "move"},
	{"enter", "inspect"},
	{"b", "blast"},
	{"i", "isolate"},
	{"h", "hide lonely"},
	{"1-3", "color"},
	{"/", "search"},
	{"r", "reset"},
	{"x", "export"},
	{"d", "theme"},
	{"q", "quit"},
}

// renderHints renders key hints separated by dots.
func renderHints(t Theme, hints []keyHint) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, t.PrimaryBold.Render(h.key)+" "+t.MutedText.Render(h.desc))
	}
	return strings.Join(parts, t.MutedText.Render(" • "))
}
