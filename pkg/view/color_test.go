package view

import (
	"testing"

	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/model"

	"pgregory.net/rapid"
)

func TestClassifyNode(t *testing.T) {
	node := func(id string, loc, churn int) model.Node {
		return model.Node{ID: id, Label: id, Metadata: model.Metadata{LinesOfCode: loc, Churn: churn}}
	}

	tests := []struct {
		name  string
		node  model.Node
		mode  ColorMode
		blast graph.Set
		want  ColorRule
	}{
		{"blast member", node("a.js", 0, 0), ModeHotspot, graph.NewSet("a.js"), RuleBlastMember},
		{"blast muted", node("b.js", 0, 50), ModeHotspot, graph.NewSet("a.js"), RuleBlastMuted},
		{"hotspot high", node("x", 0, 21), ModeHotspot, nil, RuleHotspotHigh},
		{"hotspot boundary 20", node("x", 0, 20), ModeHotspot, nil, RuleHotspotMedium},
		{"hotspot low", node("x", 0, 1), ModeHotspot, nil, RuleHotspotLow},
		{"hotspot none", node("x", 0, 0), ModeHotspot, nil, RuleHotspotNone},
		{"complexity high", node("x", 201, 0), ModeComplexity, nil, RuleComplexityHigh},
		{"complexity medium", node("x", 101, 0), ModeComplexity, nil, RuleComplexityMedium},
		{"complexity boundary 100", node("x", 100, 0), ModeComplexity, nil, RuleComplexityLow},
		{"folder", node("src/db/a.js", 0, 0), ModeFolder, nil, RuleFolder},
		{"data keyword", node("src/DataStore.py", 0, 0), ModeNone, nil, RuleData},
		{"db keyword wins over service", node("dbService.js", 0, 0), ModeNone, nil, RuleData},
		{"service", node("UserService.java", 0, 0), ModeNone, nil, RuleService},
		{"helper", node("string_helper.go", 0, 0), ModeNone, nil, RuleUtil},
		{"java", node("Main.java", 0, 0), ModeNone, nil, RuleJava},
		{"ts", node("index.ts", 0, 0), ModeNone, nil, RuleScript},
		{"tsx is not ts", node("App.tsx", 0, 0), ModeNone, nil, RuleDefault},
		{"default", node("README.md", 0, 0), ModeNone, nil, RuleDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyNode(tt.node, tt.mode, tt.blast); got != tt.want {
				t.Errorf("ClassifyNode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNodeColorPalette(t *testing.T) {
	n := model.Node{ID: "a", Label: "a", Metadata: model.Metadata{Churn: 0}}
	c := NodeColor(n, ModeHotspot, nil)
	if c.Light != "#eeeeee" || c.Dark != "#444444" {
		t.Errorf("unexpected hotspot-none colour %+v", c)
	}
	c = NodeColor(n, ModeNone, graph.NewSet("other"))
	if Resolve(c, true) != "#333333" || Resolve(c, false) != "#eeeeee" {
		t.Errorf("unexpected muted colour %+v", c)
	}
	if got := NodeColor(n, ModeNone, graph.NewSet("a")).Dark; got != "#ff0000" {
		t.Errorf("blast member = %s, want #ff0000", got)
	}
}

func TestFolderColorStable(t *testing.T) {
	a := NodeColor(model.Node{ID: "src/db/a.js"}, ModeFolder, nil)
	b := NodeColor(model.Node{ID: "src/db/models/b.js"}, ModeFolder, nil)
	c := NodeColor(model.Node{ID: "lib/c.js"}, ModeFolder, nil)
	if a != b {
		t.Errorf("same folder should share a colour: %v vs %v", a, b)
	}
	if a == c {
		t.Errorf("distinct folders collided: %v", a)
	}
	if len(a.Light) != 7 || a.Light[0] != '#' {
		t.Errorf("expected #rrggbb, got %q", a.Light)
	}
}

func TestProperty_BlastDominatesMode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := model.Node{
			ID:    rapid.StringMatching(`[a-z]{1,6}(/[a-z]{1,6}){0,2}\.(js|ts|java|py)`).Draw(t, "id"),
			Label: rapid.StringMatching(`[a-zA-Z_]{0,10}`).Draw(t, "label"),
			Metadata: model.Metadata{
				LinesOfCode: rapid.IntRange(0, 500).Draw(t, "loc"),
				Churn:       rapid.IntRange(0, 40).Draw(t, "churn"),
			},
		}
		member := rapid.Bool().Draw(t, "member")
		blast := graph.NewSet("somewhere-else")
		if member {
			blast.Add(n.ID)
		}

		first := ClassifyNode(n, ModeNone, blast)
		for _, mode := range ColorModes {
			got := ClassifyNode(n, mode, blast)
			if got != first {
				t.Fatalf("mode %s changed rule under blast: %s vs %s", mode, got, first)
			}
			if member && got != RuleBlastMember || !member && got != RuleBlastMuted {
				t.Fatalf("unexpected rule %s (member=%v)", got, member)
			}
		}
	})
}

func TestProperty_ExactlyOneRule(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := model.Node{
			ID:    "src/f.js",
			Label: rapid.String().Draw(t, "label"),
			Metadata: model.Metadata{
				LinesOfCode: rapid.IntRange(0, 1000).Draw(t, "loc"),
				Churn:       rapid.IntRange(0, 100).Draw(t, "churn"),
			},
		}
		mode := rapid.SampledFrom(ColorModes).Draw(t, "mode")
		rule := ClassifyNode(n, mode, nil)

		var family []ColorRule
		switch mode {
		case ModeHotspot:
			family = []ColorRule{RuleHotspotHigh, RuleHotspotMedium, RuleHotspotLow, RuleHotspotNone}
		case ModeComplexity:
			family = []ColorRule{RuleComplexityHigh, RuleComplexityMedium, RuleComplexityLow}
		case ModeFolder:
			family = []ColorRule{RuleFolder}
		default:
			family = []ColorRule{RuleData, RuleService, RuleUtil, RuleJava, RuleScript, RuleDefault}
		}
		for _, r := range family {
			if r == rule {
				return
			}
		}
		t.Fatalf("rule %s outside the %s family", rule, mode)
	})
}

func TestParseColorMode(t *testing.T) {
	for _, m := range ColorModes {
		got, err := ParseColorMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseColorMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseColorMode("rainbow"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if ModeFolder.Next() != ModeNone {
		t.Error("expected Next to wrap around")
	}
}
