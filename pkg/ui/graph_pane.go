package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/depcity/pkg/view"
)

// dimOpacity is the opacity below which a node is drawn faint.
const dimOpacity = 0.5

// paneLine is one rendered row of the file list. node is -1 for headers
// and edge rows.
type paneLine struct {
	text string
	node int
}

// graphLines renders the visible nodes in screen order, grouped by layout
// rank, with the hovered node's edges listed under it.
func (m Model) graphLines(width int) []paneLine {
	t := m.theme
	st := m.session.State()

	byID := make(map[string]view.StyledNode, len(m.view.Nodes))
	for _, n := range m.view.Nodes {
		byID[n.ID] = n
	}
	out := make([]view.StyledEdge, 0)
	in := make([]view.StyledEdge, 0)
	if st.HoveredID != "" {
		for _, e := range m.view.Edges {
			if !e.Style.Visible {
				continue
			}
			if e.Source == st.HoveredID {
				out = append(out, e)
			} else if e.Target == st.HoveredID {
				in = append(in, e)
			}
		}
	}

	lines := make([]paneLine, 0, len(m.order)+8)
	lastSection := ""
	for i, id := range m.order {
		n := byID[id]

		section := "unranked"
		if r, ok := m.layout.Ranks[id]; ok {
			section = fmt.Sprintf("rank %d", r)
		} else if _, ok := m.position[id]; ok {
			section = "isolated"
		}
		if section != lastSection {
			lines = append(lines, paneLine{text: t.MutedText.Render("── " + section + " ──"), node: -1})
			lastSection = section
		}

		lines = append(lines, paneLine{text: m.renderNodeRow(n, i == m.cursor, width), node: i})

		if id == st.HoveredID {
			for _, e := range out {
				lines = append(lines, paneLine{text: m.renderEdgeRow("→", e.Target, e, width), node: -1})
			}
			for _, e := range in {
				lines = append(lines, paneLine{text: m.renderEdgeRow("←", e.Source, e, width), node: -1})
			}
		}
	}
	return lines
}

func (m Model) renderNodeRow(n view.StyledNode, selected bool, width int) string {
	t := m.theme
	st := m.session.State()

	marker := "  "
	switch {
	case n.Style.Emphasized:
		marker = t.Emphasis.Render("◆ ")
	case n.ID == st.SearchMatchID:
		marker = t.PrimaryBold.Render("» ")
	case n.ID == st.HoveredID:
		marker = t.PrimaryBold.Render("• ")
	}

	metrics := fmt.Sprintf("%5d loc %3d churn", n.Metadata.LinesOfCode, n.Metadata.Churn)
	labelW := max(width-lipgloss.Width(metrics)-8, 8)
	label := padRight(truncate(n.Label, labelW), labelW)

	style := t.Base
	if n.Style.Opacity < dimOpacity {
		style = t.Dimmed
	}
	row := marker + t.Swatch(n.Style.Fill) + " " + style.Render(label) + " " + t.MutedText.Render(metrics)
	if selected {
		return t.Selected.Render(row)
	}
	return " " + row
}

func (m Model) renderEdgeRow(arrow, other string, e view.StyledEdge, width int) string {
	t := m.theme
	stroke := t.Renderer.NewStyle().Foreground(lipgloss.Color(e.Style.Stroke))
	text := arrow + " " + other
	if e.IsCyclic {
		text += " (circular)"
	}
	return "      " + stroke.Render(truncate(text, max(width-8, 8)))
}

// renderGraphPane renders the file list, scrolled so the cursor row stays
// in view.
func (m Model) renderGraphPane(width, height int) string {
	inner := height - 2
	style := m.theme.Panel.Width(width - 2).Height(inner)

	if m.view.Len() == 0 {
		msg := "No files to show."
		if m.session.Store().Len() > 0 {
			msg = "Every file is filtered out. Press r to reset or h to show all files."
		}
		return style.Render(m.theme.MutedText.Render(msg))
	}

	lines := m.graphLines(width - 4)
	cursorLine := 0
	for i, l := range lines {
		if l.node == m.cursor {
			cursorLine = i
			break
		}
	}

	start := 0
	if len(lines) > inner {
		start = min(max(cursorLine-inner/2, 0), len(lines)-inner)
	}
	end := min(start+inner, len(lines))

	rows := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		rows = append(rows, l.text)
	}
	return style.Render(strings.Join(rows, "\n"))
}

// renderLegend renders the legend of the current view plus a short summary
// of the graph.
func (m Model) renderLegend(width int) string {
	t := m.theme
	l := m.view.Legend
	dark := m.view.Dark

	var b strings.Builder
	b.WriteString(t.PrimaryBold.Render(l.Title) + "\n")
	if l.Note != "" {
		b.WriteString(t.MutedText.Render(truncate(l.Note, width)) + "\n")
	}
	for _, r := range l.Rows {
		b.WriteString(t.Swatch(view.Resolve(r.Color, dark)) + " " + truncate(r.Label, width-3) + "\n")
	}

	b.WriteString("\n" + t.PrimaryBold.Render("Edges") + "\n")
	for _, r := range l.Edges {
		stroke := t.Renderer.NewStyle().Foreground(lipgloss.Color(view.Resolve(r.Color, dark)))
		b.WriteString(stroke.Render("──▶") + " " + truncate(r.Label, width-4) + "\n")
	}

	s := m.session.Store()
	st := m.session.State()
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d\n", t.MutedText.Render("Files"), s.Len())
	fmt.Fprintf(&b, "%s %d\n", t.MutedText.Render("Imports"), len(s.Edges()))
	fmt.Fprintf(&b, "%s %d\n", t.MutedText.Render("Visible"), m.view.Len())
	if st.BlastActive() {
		fmt.Fprintf(&b, "%s %d\n", t.DangerText.Render("Blast radius"), st.BlastRadius.Len())
	}
	if s.HasCyclicEdges() {
		b.WriteString(t.DangerText.Render("Circular imports present") + "\n")
	}
	return b.String()
}
