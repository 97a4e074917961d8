package view

import (
	"fmt"
	"strings"
)

// ColorMode selects the node colouring scheme. At most one mode is active;
// ModeNone falls back to the label keyword heuristics.
type ColorMode int

const (
	ModeNone ColorMode = iota
	ModeHotspot
	ModeComplexity
	ModeFolder
)

// ColorModes lists every mode in cycling order.
var ColorModes = []ColorMode{ModeNone, ModeHotspot, ModeComplexity, ModeFolder}

func (m ColorMode) String() string {
	switch m {
	case ModeHotspot:
		return "hotspot"
	case ModeComplexity:
		return "complexity"
	case ModeFolder:
		return "folder"
	default:
		return "none"
	}
}

// Title is the human label used in legends and toasts.
func (m ColorMode) Title() string {
	switch m {
	case ModeHotspot:
		return "Git Hotspots"
	case ModeComplexity:
		return "Complexity (LOC)"
	case ModeFolder:
		return "Folder Districts"
	default:
		return "File Types"
	}
}

// Next returns the following mode in ColorModes, wrapping around.
func (m ColorMode) Next() ColorMode {
	return ColorModes[(int(m)+1)%len(ColorModes)]
}

// ParseColorMode accepts the String form of a mode, case-insensitively.
// The empty string parses as ModeNone.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "default":
		return ModeNone, nil
	case "hotspot", "churn":
		return ModeHotspot, nil
	case "complexity", "loc":
		return ModeComplexity, nil
	case "folder", "folders":
		return ModeFolder, nil
	}
	return ModeNone, fmt.Errorf("unknown color mode %q (want none, hotspot, complexity or folder)", s)
}
