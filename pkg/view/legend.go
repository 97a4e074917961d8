package view

import "github.com/charmbracelet/lipgloss"

// LegendRow is one swatch of a legend.
type LegendRow struct {
	Color lipgloss.AdaptiveColor
	Label string
}

// Legend explains the node colours and edge strokes currently on screen.
type Legend struct {
	Title string
	Rows  []LegendRow
	// Note replaces Rows when the colours are not a fixed palette.
	Note  string
	Edges []LegendRow
}

var edgeLegend = []LegendRow{
	{Color: lipgloss.AdaptiveColor{Light: "#b1b1b7", Dark: "#888888"}, Label: "Standard Import"},
	{Color: same("#ff0000"), Label: "Circular Dependency (Bad)"},
	{Color: lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}, Label: "Active / Focused"},
}

// LegendFor builds the legend for a colour mode. An active blast radius
// overrides every mode.
func LegendFor(mode ColorMode, blastActive bool) Legend {
	l := Legend{Title: mode.Title(), Edges: edgeLegend}
	if blastActive {
		l.Title = "Blast Radius"
		l.Rows = []LegendRow{
			{Color: RuleColor(RuleBlastMember), Label: "Affected"},
			{Color: RuleColor(RuleBlastMuted), Label: "Unaffected"},
		}
		return l
	}

	switch mode {
	case ModeHotspot:
		l.Rows = []LegendRow{
			{Color: RuleColor(RuleHotspotHigh), Label: "High Churn (> 20 commits)"},
			{Color: RuleColor(RuleHotspotMedium), Label: "Active (> 10 commits)"},
			{Color: RuleColor(RuleHotspotLow), Label: "Recent (> 0 commits)"},
			{Color: RuleColor(RuleHotspotNone), Label: "Stable (0 commits)"},
		}
	case ModeComplexity:
		l.Rows = []LegendRow{
			{Color: RuleColor(RuleComplexityHigh), Label: "High Complexity (> 200 LOC)"},
			{Color: RuleColor(RuleComplexityMedium), Label: "Medium Complexity"},
			{Color: RuleColor(RuleComplexityLow), Label: "Low Complexity"},
		}
	case ModeFolder:
		l.Note = "Colored by distinct parent folder"
	default:
		l.Rows = []LegendRow{
			{Color: RuleColor(RuleData), Label: "Database / Data"},
			{Color: RuleColor(RuleService), Label: "Service / Logic"},
			{Color: RuleColor(RuleUtil), Label: "Utils / Helpers"},
			{Color: RuleColor(RuleJava), Label: "Java File"},
			{Color: RuleColor(RuleScript), Label: "JS / TS File"},
		}
	}
	return l
}
