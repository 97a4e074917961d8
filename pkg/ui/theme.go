package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/depcity/pkg/view"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so low-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// Theme is the set of styles for one theme. The explorer has its own
// dark/light toggle, so colours are resolved up front instead of being left
// to lipgloss background detection.
type Theme struct {
	Renderer *lipgloss.Renderer
	Dark     bool

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Subtext   lipgloss.Color
	Border    lipgloss.Color
	Highlight lipgloss.Color
	Muted     lipgloss.Color
	Danger    lipgloss.Color
	Success   lipgloss.Color

	Base     lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Dimmed   lipgloss.Style
	Emphasis lipgloss.Style

	MutedText     lipgloss.Style
	SecondaryText lipgloss.Style
	PrimaryBold   lipgloss.Style
	DangerText    lipgloss.Style
	Link          lipgloss.Style

	Panel        lipgloss.Style
	FocusedPanel lipgloss.Style
	Toast        lipgloss.Style
	ToastError   lipgloss.Style
}

func pick(c lipgloss.AdaptiveColor, dark bool) lipgloss.Color {
	return lipgloss.Color(view.Resolve(c, dark))
}

// NewTheme builds the Dracula-inspired theme for the given mode.
func NewTheme(r *lipgloss.Renderer, dark bool) Theme {
	t := Theme{
		Renderer:  r,
		Dark:      dark,
		Primary:   pick(ColorPrimary, dark),
		Secondary: pick(ColorSecondary, dark),
		Subtext:   pick(ColorSubtext, dark),
		Border:    pick(ColorBgHighlight, dark),
		Highlight: pick(ColorBgHighlight, dark),
		Muted:     pick(ColorMuted, dark),
		Danger:    pick(ColorDanger, dark),
		Success:   pick(ColorSuccess, dark),
	}

	t.Base = r.NewStyle().Foreground(pick(ColorText, dark))

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(pick(ColorHeaderText, dark)).
		Bold(true).
		Padding(0, 1)

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		Bold(true)

	t.Dimmed = r.NewStyle().Foreground(t.Muted).Faint(true)
	t.Emphasis = r.NewStyle().Foreground(t.Danger).Bold(true)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.SecondaryText = r.NewStyle().Foreground(t.Subtext)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.DangerText = r.NewStyle().Foreground(t.Danger).Bold(true)
	t.Link = r.NewStyle().Foreground(pick(ColorInfo, dark)).Underline(true)

	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
	t.FocusedPanel = t.Panel.BorderForeground(t.Primary)

	t.Toast = r.NewStyle().
		Foreground(pick(ColorHeaderText, dark)).
		Background(t.Success).
		Bold(true).
		Padding(0, 1)
	t.ToastError = t.Toast.Background(t.Danger)

	return t
}

// Swatch renders a two-cell colour block for hex.
func (t Theme) Swatch(hex string) string {
	return t.Renderer.NewStyle().Background(ThemeBg(hex)).Foreground(ThemeFg(hex)).Render("██")
}

// TestTheme returns a dark theme suitable for use in tests.
func TestTheme() Theme {
	return NewTheme(lipgloss.NewRenderer(os.Stdout), true)
}
