package export

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vanderheijden86/depcity/pkg/layout"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/view"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/basicfont"
)

// ErrEmptyView is returned when there is nothing visible to export.
var ErrEmptyView = errors.New("nothing visible to export")

// SnapshotOptions controls 2D image export.
type SnapshotOptions struct {
	Path    string         // Output path; format inferred from extension when Format empty
	Format  string         // "svg" or "png" (case-insensitive)
	Title   string         // Optional title rendered in the header
	RepoURL string         // Shown under the title
	Layout  layout.Options // Box sizes; zero fields take the layout defaults
}

// SaveGraphSnapshot renders the visible part of v at the positions in lay
// as a static SVG or PNG image. Node fills, opacity and borders, edge
// strokes and visibility, and the legend all come from v.
func SaveGraphSnapshot(v view.View, lay layout.Result, opts SnapshotOptions) error {
	defer metrics.Timer(metrics.Export)()

	if v.Len() == 0 {
		return ErrEmptyView
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	sc := buildScene(v, lay, opts)
	if len(sc.Nodes) == 0 {
		return ErrEmptyView
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	switch format {
	case "png":
		return renderPNG(sc).SavePNG(opts.Path)
	default:
		file, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer file.Close()
		return renderSVGToWriter(file, sc)
	}
}

// WriteSVG renders v as SVG into w.
func WriteSVG(w io.Writer, v view.View, lay layout.Result, opts SnapshotOptions) error {
	defer metrics.Timer(metrics.Export)()

	sc := buildScene(v, lay, opts)
	if len(sc.Nodes) == 0 {
		return ErrEmptyView
	}
	return renderSVGToWriter(w, sc)
}

// --- scene -------------------------------------------------------------------

type sceneNode struct {
	ID, Label   string
	X, Y, W, H  float64
	Fill        color.RGBA
	Text        color.RGBA
	Opacity     float64
	Border      color.RGBA
	BorderWidth float64
	LOC, Churn  int
}

type sceneEdge struct {
	X1, Y1, X2, Y2 float64
	Stroke         color.RGBA
	Width          float64
	Opacity        float64
	ZIndex         int
}

type legendRow struct {
	Color color.RGBA
	Label string
}

type legendBlock struct {
	Title string
	Note  string
	Rows  []legendRow
	Edges []legendRow
	W, H  float64
}

type palette struct {
	Backdrop, Header, Text, Subtle, Stroke color.RGBA
}

type scene struct {
	Nodes  []sceneNode
	Edges  []sceneEdge
	Width  int
	Height int
	Header float64

	Title    string
	Subtitle string
	Summary  string
	Legend   legendBlock
	Colors   palette
}

const (
	scenePadding   = 36.0
	minHeader      = 120.0
	legendWidth    = 220.0
	legendRowH     = 16.0
	minSceneWidth  = 640
	charWidth      = 7.0 // basicfont.Face7x13 advance
	nodeTextIndent = 10.0
)

func paletteFor(dark bool) palette {
	if dark {
		return palette{
			Backdrop: rgb("#1e1e1e"),
			Header:   rgb("#2a2a2a"),
			Text:     rgb("#eeeeee"),
			Subtle:   rgb("#aaaaaa"),
			Stroke:   rgb("#555555"),
		}
	}
	return palette{
		Backdrop: rgb("#fafafa"),
		Header:   rgb("#ffffff"),
		Text:     rgb("#222222"),
		Subtle:   rgb("#555555"),
		Stroke:   rgb("#cccccc"),
	}
}

func buildScene(v view.View, lay layout.Result, opts SnapshotOptions) scene {
	d := layout.DefaultOptions()
	nodeW, nodeH := opts.Layout.NodeWidth, opts.Layout.NodeHeight
	if nodeW <= 0 {
		nodeW = d.NodeWidth
	}
	if nodeH <= 0 {
		nodeH = d.NodeHeight
	}

	sc := scene{
		Title:  opts.Title,
		Colors: paletteFor(v.Dark),
		Legend: buildLegend(v.Legend, v.Dark),
	}
	if sc.Title == "" {
		sc.Title = "Dependency Graph"
	}
	sc.Subtitle = opts.RepoURL

	// Nodes without a laid out position are not drawn, nor are their edges.
	placed := make(map[string]sceneNode, len(v.Nodes))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range v.Nodes {
		p, ok := lay.Position(n.ID)
		if !ok {
			continue
		}
		fill := rgb(n.Style.Fill)
		sn := sceneNode{
			ID:          n.ID,
			Label:       n.Label,
			X:           p.X,
			Y:           p.Y,
			W:           nodeW,
			H:           nodeH,
			Fill:        fill,
			Text:        contrastText(fill),
			Opacity:     n.Style.Opacity,
			Border:      rgb(n.Style.Border.Color),
			BorderWidth: n.Style.Border.Width,
			LOC:         n.Metadata.LinesOfCode,
			Churn:       n.Metadata.Churn,
		}
		placed[n.ID] = sn
		sc.Nodes = append(sc.Nodes, sn)
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X+nodeW), math.Max(maxY, p.Y+nodeH)
	}
	if len(sc.Nodes) == 0 {
		return sc
	}

	sc.Header = math.Max(minHeader, sc.Legend.H+32)
	offX := scenePadding - minX
	offY := sc.Header + scenePadding - minY
	for i := range sc.Nodes {
		sc.Nodes[i].X += offX
		sc.Nodes[i].Y += offY
		placed[sc.Nodes[i].ID] = sc.Nodes[i]
	}

	visible := 0
	for _, e := range v.Edges {
		if !e.Style.Visible {
			continue
		}
		from, okFrom := placed[e.Source]
		to, okTo := placed[e.Target]
		if !okFrom || !okTo {
			continue
		}
		visible++
		if e.IsSelfLoop() {
			continue
		}
		// Top-down layout: leave from the bottom of the importer, arrive at
		// the top of the imported file.
		sc.Edges = append(sc.Edges, sceneEdge{
			X1:      from.X + from.W/2,
			Y1:      from.Y + from.H,
			X2:      to.X + to.W/2,
			Y2:      to.Y,
			Stroke:  rgb(e.Style.Stroke),
			Width:   e.Style.Width,
			Opacity: e.Style.Opacity,
			ZIndex:  e.Style.ZIndex,
		})
	}
	sort.SliceStable(sc.Edges, func(i, j int) bool { return sc.Edges[i].ZIndex < sc.Edges[j].ZIndex })

	sc.Summary = fmt.Sprintf("files: %d  imports: %d", len(sc.Nodes), visible)

	w := int(math.Ceil(maxX-minX+2*scenePadding)) + int(legendWidth)
	sc.Width = max(w, minSceneWidth)
	sc.Height = int(math.Ceil(sc.Header + maxY - minY + 2*scenePadding))
	return sc
}

func buildLegend(l view.Legend, dark bool) legendBlock {
	lb := legendBlock{Title: l.Title, Note: l.Note, W: legendWidth}
	if lb.Title == "" {
		lb.Title = "Legend"
	}
	for _, r := range l.Rows {
		lb.Rows = append(lb.Rows, legendRow{Color: rgb(view.Resolve(r.Color, dark)), Label: r.Label})
	}
	for _, r := range l.Edges {
		lb.Edges = append(lb.Edges, legendRow{Color: rgb(view.Resolve(r.Color, dark)), Label: r.Label})
	}
	lines := 1 + len(lb.Rows) + len(lb.Edges)
	if lb.Note != "" {
		lines++
	}
	lb.H = float64(lines)*legendRowH + 24
	return lb
}

// --- PNG ---------------------------------------------------------------------

func renderPNG(sc scene) *gg.Context {
	dc := gg.NewContext(sc.Width, sc.Height)
	dc.SetColor(sc.Colors.Backdrop)
	dc.Clear()

	dc.SetColor(sc.Colors.Header)
	dc.DrawRoundedRectangle(16, 16, float64(sc.Width)-32, sc.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawSummaryBlock(dc, sc)
	drawLegend(dc, sc)

	for _, e := range sc.Edges {
		stroke := withAlpha(e.Stroke, e.Opacity)
		dc.SetColor(stroke)
		dc.SetLineWidth(e.Width)
		dc.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		dc.Stroke()
		drawArrow(dc, stroke, e)
	}

	for _, n := range sc.Nodes {
		drawNode(dc, n)
	}
	return dc
}

func drawNode(dc *gg.Context, n sceneNode) {
	dc.SetColor(withAlpha(n.Fill, n.Opacity))
	dc.DrawRoundedRectangle(n.X, n.Y, n.W, n.H, 6)
	dc.Fill()
	dc.SetColor(withAlpha(n.Border, n.Opacity))
	dc.SetLineWidth(n.BorderWidth)
	dc.DrawRoundedRectangle(n.X, n.Y, n.W, n.H, 6)
	dc.Stroke()

	dc.SetColor(withAlpha(n.Text, n.Opacity))
	dc.DrawStringAnchored(truncate(n.Label, labelChars(n.W)), n.X+nodeTextIndent, n.Y+n.H*0.36, 0, 0.5)
	dc.DrawStringAnchored(nodeMetrics(n), n.X+nodeTextIndent, n.Y+n.H*0.72, 0, 0.5)
}

// drawArrow fills a closed arrow head at the target end of e.
func drawArrow(dc *gg.Context, c color.Color, e sceneEdge) {
	xs, ys := arrowHead(e)
	dc.SetColor(c)
	dc.NewSubPath()
	dc.MoveTo(xs[0], ys[0])
	dc.LineTo(xs[1], ys[1])
	dc.LineTo(xs[2], ys[2])
	dc.ClosePath()
	dc.Fill()
}

func drawSummaryBlock(dc *gg.Context, sc scene) {
	dc.SetColor(sc.Colors.Text)
	dc.DrawStringAnchored(sc.Title, 32, 44, 0, 0.5)
	dc.SetColor(sc.Colors.Subtle)
	if sc.Subtitle != "" {
		dc.DrawStringAnchored(sc.Subtitle, 32, 64, 0, 0.5)
	}
	dc.DrawStringAnchored(sc.Summary, 32, 84, 0, 0.5)
}

func drawLegend(dc *gg.Context, sc scene) {
	l := sc.Legend
	x := float64(sc.Width) - l.W - 24
	y := 24.0
	dc.SetColor(sc.Colors.Header)
	dc.DrawRoundedRectangle(x, y, l.W, l.H, 10)
	dc.Fill()
	dc.SetColor(sc.Colors.Stroke)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, l.W, l.H, 10)
	dc.Stroke()

	dc.SetColor(sc.Colors.Text)
	dc.DrawStringAnchored(l.Title, x+12, y+18, 0, 0.5)
	row := y + 18 + legendRowH
	if l.Note != "" {
		dc.SetColor(sc.Colors.Subtle)
		dc.DrawStringAnchored(l.Note, x+12, row, 0, 0.5)
		row += legendRowH
	}
	for _, r := range l.Rows {
		dc.SetColor(r.Color)
		dc.DrawRoundedRectangle(x+12, row-7, 12, 12, 3)
		dc.Fill()
		dc.SetColor(sc.Colors.Subtle)
		dc.DrawStringAnchored(r.Label, x+32, row, 0, 0.5)
		row += legendRowH
	}
	for _, r := range l.Edges {
		dc.SetColor(r.Color)
		dc.SetLineWidth(3)
		dc.DrawLine(x+12, row, x+24, row)
		dc.Stroke()
		dc.SetColor(sc.Colors.Subtle)
		dc.DrawStringAnchored(r.Label, x+32, row, 0, 0.5)
		row += legendRowH
	}
}

// --- SVG ---------------------------------------------------------------------

func renderSVGToWriter(w io.Writer, sc scene) error {
	canvas := svg.New(w)
	canvas.Start(sc.Width, sc.Height)
	canvas.Title(sc.Title)
	canvas.Rect(0, 0, sc.Width, sc.Height, fmt.Sprintf("fill:%s", css(sc.Colors.Backdrop)))
	canvas.Roundrect(16, 16, sc.Width-32, int(sc.Header-24), 10, 10, fmt.Sprintf("fill:%s", css(sc.Colors.Header)))

	drawSummaryBlockSVG(canvas, sc)
	drawLegendSVG(canvas, sc)

	for _, e := range sc.Edges {
		canvas.Line(int(e.X1), int(e.Y1), int(e.X2), int(e.Y2),
			fmt.Sprintf("stroke:%s;stroke-width:%s;stroke-opacity:%s", css(e.Stroke), num(e.Width), num(e.Opacity)))
		xs, ys := arrowHead(e)
		canvas.Polygon(
			[]int{int(xs[0]), int(xs[1]), int(xs[2])},
			[]int{int(ys[0]), int(ys[1]), int(ys[2])},
			fmt.Sprintf("fill:%s;fill-opacity:%s", css(e.Stroke), num(e.Opacity)),
		)
	}

	for _, n := range sc.Nodes {
		x, y := int(n.X), int(n.Y)
		canvas.Roundrect(x, y, int(n.W), int(n.H), 6, 6,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%s;opacity:%s", css(n.Fill), css(n.Border), num(n.BorderWidth), num(n.Opacity)))
		canvas.Text(x+int(nodeTextIndent), y+int(n.H*0.4), truncate(n.Label, labelChars(n.W)),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold;opacity:%s", css(n.Text), num(n.Opacity)))
		canvas.Text(x+int(nodeTextIndent), y+int(n.H*0.8), nodeMetrics(n),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;opacity:%s", css(n.Text), num(n.Opacity)))
	}

	canvas.End()
	return nil
}

func drawSummaryBlockSVG(canvas *svg.SVG, sc scene) {
	canvas.Text(32, 44, sc.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(sc.Colors.Text)))
	if sc.Subtitle != "" {
		canvas.Text(32, 64, sc.Subtitle, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(sc.Colors.Subtle)))
	}
	canvas.Text(32, 84, sc.Summary, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(sc.Colors.Subtle)))
}

func drawLegendSVG(canvas *svg.SVG, sc scene) {
	l := sc.Legend
	x := sc.Width - int(l.W) - 24
	y := 24
	canvas.Roundrect(x, y, int(l.W), int(l.H), 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(sc.Colors.Header), css(sc.Colors.Stroke)))
	canvas.Text(x+12, y+18, l.Title, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(sc.Colors.Text)))

	label := fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(sc.Colors.Subtle))
	row := y + 18 + int(legendRowH)
	if l.Note != "" {
		canvas.Text(x+12, row, l.Note, label)
		row += int(legendRowH)
	}
	for _, r := range l.Rows {
		canvas.Roundrect(x+12, row-9, 12, 12, 3, 3, fmt.Sprintf("fill:%s", css(r.Color)))
		canvas.Text(x+32, row, r.Label, label)
		row += int(legendRowH)
	}
	for _, r := range l.Edges {
		canvas.Line(x+12, row-4, x+24, row-4, fmt.Sprintf("stroke:%s;stroke-width:3", css(r.Color)))
		canvas.Text(x+32, row, r.Label, label)
		row += int(legendRowH)
	}
}

// --- helpers -----------------------------------------------------------------

// arrowHead returns the three corners of the arrow at the target end of e,
// sized by the edge width.
func arrowHead(e sceneEdge) (xs, ys [3]float64) {
	size := 6 + 2*e.Width
	dx, dy := e.X2-e.X1, e.Y2-e.Y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		dx, dy, length = 0, 1, 1
	}
	ux, uy := dx/length, dy/length
	bx, by := e.X2-ux*size, e.Y2-uy*size
	half := size / 2
	xs = [3]float64{e.X2, bx - uy*half, bx + uy*half}
	ys = [3]float64{e.Y2, by + ux*half, by - ux*half}
	return xs, ys
}

func nodeMetrics(n sceneNode) string {
	return fmt.Sprintf("loc %d  churn %d", n.LOC, n.Churn)
}

func labelChars(width float64) int {
	return int((width - 2*nodeTextIndent) / charWidth)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

var fallbackGrey = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}

// rgb parses "#rgb" or "#rrggbb". Anything else is mid grey.
func rgb(hex string) color.RGBA {
	c, err := colorful.Hex(strings.TrimSpace(hex))
	if err != nil {
		return fallbackGrey
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func withAlpha(c color.RGBA, opacity float64) color.NRGBA {
	a := math.Max(0, math.Min(1, opacity))
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(a * 255))}
}

// contrastText picks near-black or near-white text for a fill by its
// CIE lightness.
func contrastText(fill color.RGBA) color.RGBA {
	c, _ := colorful.MakeColor(fill)
	if l, _, _ := c.Lab(); l > 0.6 {
		return color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
	}
	return color.RGBA{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff}
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
