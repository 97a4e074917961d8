package view

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// ColorRule identifies which rule of the colour precedence chain fired for a
// node. Exactly one rule fires per node.
type ColorRule int

const (
	RuleBlastMember ColorRule = iota
	RuleBlastMuted
	RuleHotspotHigh
	RuleHotspotMedium
	RuleHotspotLow
	RuleHotspotNone
	RuleComplexityHigh
	RuleComplexityMedium
	RuleComplexityLow
	RuleFolder
	RuleData
	RuleService
	RuleUtil
	RuleJava
	RuleScript
	RuleDefault
)

var ruleNames = [...]string{
	RuleBlastMember:      "blast-member",
	RuleBlastMuted:       "blast-muted",
	RuleHotspotHigh:      "hotspot-high",
	RuleHotspotMedium:    "hotspot-medium",
	RuleHotspotLow:       "hotspot-low",
	RuleHotspotNone:      "hotspot-none",
	RuleComplexityHigh:   "complexity-high",
	RuleComplexityMedium: "complexity-medium",
	RuleComplexityLow:    "complexity-low",
	RuleFolder:           "folder",
	RuleData:             "data",
	RuleService:          "service",
	RuleUtil:             "util",
	RuleJava:             "java",
	RuleScript:           "script",
	RuleDefault:          "default",
}

func (r ColorRule) String() string {
	if r < 0 || int(r) >= len(ruleNames) {
		return fmt.Sprintf("rule(%d)", int(r))
	}
	return ruleNames[r]
}

func same(hex string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: hex, Dark: hex}
}

// Palette for the fixed rules. RuleFolder is computed per folder.
var rulePalette = map[ColorRule]lipgloss.AdaptiveColor{
	RuleBlastMember:      same("#ff0000"),
	RuleBlastMuted:       {Light: "#eeeeee", Dark: "#333333"},
	RuleHotspotHigh:      same("#b71c1c"),
	RuleHotspotMedium:    same("#e57373"),
	RuleHotspotLow:       same("#fff176"),
	RuleHotspotNone:      {Light: "#eeeeee", Dark: "#444444"},
	RuleComplexityHigh:   same("#ffcdd2"),
	RuleComplexityMedium: same("#fff9c4"),
	RuleComplexityLow:    same("#c8e6c9"),
	RuleData:             same("#ef5350"),
	RuleService:          same("#42a5f5"),
	RuleUtil:             same("#66bb6a"),
	RuleJava:             same("#ffa726"),
	RuleScript:           same("#ffee58"),
	RuleDefault:          same("#ffffff"),
}

// ClassifyNode walks the colour precedence chain and returns the first rule
// that matches: blast radius, then the active mode, then label keywords.
func ClassifyNode(n model.Node, mode ColorMode, blast graph.Set) ColorRule {
	if !blast.IsEmpty() {
		if blast.Has(n.ID) {
			return RuleBlastMember
		}
		return RuleBlastMuted
	}

	switch mode {
	case ModeHotspot:
		switch churn := n.Metadata.Churn; {
		case churn > 20:
			return RuleHotspotHigh
		case churn > 10:
			return RuleHotspotMedium
		case churn > 0:
			return RuleHotspotLow
		default:
			return RuleHotspotNone
		}
	case ModeComplexity:
		switch loc := n.Metadata.LinesOfCode; {
		case loc > 200:
			return RuleComplexityHigh
		case loc > 100:
			return RuleComplexityMedium
		default:
			return RuleComplexityLow
		}
	case ModeFolder:
		return RuleFolder
	}

	return classifyLabel(n.Label)
}

func classifyLabel(label string) ColorRule {
	name := strings.ToLower(label)
	switch {
	case strings.Contains(name, "db"), strings.Contains(name, "data"):
		return RuleData
	case strings.Contains(name, "service"):
		return RuleService
	case strings.Contains(name, "util"), strings.Contains(name, "helper"):
		return RuleUtil
	case strings.HasSuffix(name, ".java"):
		return RuleJava
	case strings.HasSuffix(name, ".js"), strings.HasSuffix(name, ".ts"):
		return RuleScript
	}
	return RuleDefault
}

// NodeColor returns the fill colour for n.
func NodeColor(n model.Node, mode ColorMode, blast graph.Set) lipgloss.AdaptiveColor {
	rule := ClassifyNode(n, mode, blast)
	if rule == RuleFolder {
		return same(FolderColor(model.TopFolder(n.ID)))
	}
	return rulePalette[rule]
}

// RuleColor returns the fixed palette entry for rule. RuleFolder has no
// fixed colour and yields the default.
func RuleColor(rule ColorRule) lipgloss.AdaptiveColor {
	if c, ok := rulePalette[rule]; ok {
		return c
	}
	return rulePalette[RuleDefault]
}

// FolderColor hashes a folder key to a stable hex colour.
func FolderColor(folder string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(folder))
	return fmt.Sprintf("#%06x", h.Sum32()&0xffffff)
}

// Resolve picks the light or dark half of an adaptive colour.
func Resolve(c lipgloss.AdaptiveColor, dark bool) string {
	if dark {
		return c.Dark
	}
	return c.Light
}
