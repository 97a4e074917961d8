package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/model"
)

const inspectorWrap = 60

// inspector is the file detail panel: metrics, relations, source and an
// optional explanation, scrolled in a viewport.
type inspector struct {
	id          string
	code        string
	loading     bool
	explaining  bool
	explanation string
	err         string
	// gen is the session generation of the last request sent for id.
	gen       uint64
	cancelled bool

	vp viewport.Model
	md *glamour.TermRenderer
}

func newInspector(dark bool) inspector {
	return inspector{vp: viewport.New(40, 20), md: newMarkdownRenderer(dark)}
}

func newMarkdownRenderer(dark bool) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(inspectorWrap),
	)
	return r
}

// open resets the panel for id.
func (in *inspector) open(id string) {
	in.id = id
	in.code = ""
	in.loading = false
	in.explaining = false
	in.explanation = ""
	in.err = ""
	in.cancelled = false
	in.vp.GotoTop()
}

func (in *inspector) setSize(w, h int) {
	in.vp.Width = max(w, 10)
	in.vp.Height = max(h, 3)
}

// abandon stops waiting for requests issued before generation gen. Their
// results are dropped as stale when they arrive.
func (in *inspector) abandon(gen uint64) bool {
	if in.gen == gen || (!in.loading && !in.explaining) {
		return false
	}
	in.cancelled = in.loading
	in.loading = false
	in.explaining = false
	return true
}

// markdown renders md, falling back to the raw text.
func (in *inspector) markdown(md string) string {
	if in.md == nil {
		return md
	}
	out, err := in.md.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// sync rebuilds the viewport content for the inspected node.
func (in *inspector) sync(t Theme, s *graph.Store) {
	n, ok := s.Node(in.id)
	if !ok {
		in.vp.SetContent(t.MutedText.Render("File no longer in the graph."))
		return
	}

	var b strings.Builder
	b.WriteString(t.PrimaryBold.Render(n.Label) + "\n")
	b.WriteString(t.SecondaryText.Render(n.ID) + "\n\n")
	fmt.Fprintf(&b, "%s %d   %s %d   %s %s\n",
		t.MutedText.Render("LOC"), n.Metadata.LinesOfCode,
		t.MutedText.Render("Churn"), n.Metadata.Churn,
		t.MutedText.Render("Lang"), model.Language(n.ID))
	if link := model.SourceURL(s.RepoURL(), n.ID); link != "" {
		b.WriteString(t.Link.Render(link) + "\n")
	}

	writeRelation(&b, t, "Used by", s.Importers(n.ID))
	writeRelation(&b, t, "Uses", s.Imports(n.ID))

	b.WriteString("\n")
	switch {
	case in.loading:
		b.WriteString(t.MutedText.Render("Loading source…") + "\n")
	case in.cancelled:
		b.WriteString(t.MutedText.Render("Source request cancelled. Press enter to load it again.") + "\n")
	case in.err != "":
		b.WriteString(t.DangerText.Render(in.err) + "\n")
	case in.code != "":
		fence := "```" + model.Language(n.ID) + "\n" + strings.TrimRight(in.code, "\n") + "\n```"
		b.WriteString(in.markdown(fence) + "\n")
	}

	switch {
	case in.explaining:
		b.WriteString("\n" + t.MutedText.Render("Explaining…") + "\n")
	case in.explanation != "":
		b.WriteString("\n" + t.PrimaryBold.Render("Explanation") + "\n")
		b.WriteString(in.markdown(in.explanation) + "\n")
	}

	in.vp.SetContent(b.String())
}

func writeRelation(b *strings.Builder, t Theme, title string, ids []string) {
	fmt.Fprintf(b, "\n%s %s\n", t.PrimaryBold.Render(title), t.MutedText.Render(fmt.Sprintf("(%d)", len(ids))))
	if len(ids) == 0 {
		b.WriteString(t.MutedText.Render("  none") + "\n")
		return
	}
	for _, id := range ids {
		b.WriteString("  " + id + "\n")
	}
}
