// Package ui is the interactive terminal explorer. It dispatches key
// presses into a view.Session and renders the derived view as a ranked
// file list, a legend and an inspector panel.
package ui

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/depcity/internal/datasource"
	"github.com/vanderheijden86/depcity/pkg/config"
	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/export"
	"github.com/vanderheijden86/depcity/pkg/layout"
	"github.com/vanderheijden86/depcity/pkg/model"
	"github.com/vanderheijden86/depcity/pkg/provider"
	"github.com/vanderheijden86/depcity/pkg/spatial"
	"github.com/vanderheijden86/depcity/pkg/view"
	"github.com/vanderheijden86/depcity/pkg/watcher"
)

const (
	defaultWidth  = 120
	defaultHeight = 40
)

// Options wires the explorer to its collaborators. Every provider is
// optional; the matching keys are disabled without one.
type Options struct {
	Config    config.Config
	RepoURL   string
	Analyzer  provider.AnalysisProvider
	Content   provider.ContentProvider
	Explainer provider.ExplanationProvider
	Watcher   *watcher.SnapshotWatcher
	// ExportDir receives image and city exports. Defaults to the working directory.
	ExportDir string
	// Clipboard copies text. Defaults to the system clipboard.
	Clipboard func(string) error
	// Now stamps export file names. Defaults to time.Now.
	Now func() time.Time
}

// Model is the bubbletea model of the explorer.
type Model struct {
	opts     Options
	session  *view.Session
	snapshot model.Snapshot
	layout   layout.Result
	position map[string]model.Point
	cache    *spatial.Cache
	view     view.View

	renderer *lipgloss.Renderer
	theme    Theme

	// order holds the visible node ids in screen order.
	order  []string
	cursor int

	searching bool
	search    textinput.Model

	inspector inspector

	toast      string
	toastError bool
	toastSeq   int

	analyzing bool
	// scatter spreads city exports with the scatter force constants.
	scatter bool

	width, height int
	ready         bool
	quitting      bool
}

// NewModel creates the explorer on snap.
func NewModel(snap model.Snapshot, opts Options) Model {
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RepoURL == "" {
		opts.RepoURL = snap.RepoURL
	}
	if opts.Config.Spatial.Tuning == (spatial.Tuning{}) {
		opts.Config.Spatial.Tuning = spatial.DefaultTuning()
	}

	ti := textinput.New()
	ti.Placeholder = "Search files…"
	ti.Prompt = "/ "
	ti.CharLimit = 120

	r := lipgloss.NewRenderer(os.Stdout)
	m := Model{
		opts:     opts,
		session:  view.NewSession(snap),
		renderer: r,
		search:   ti,
		width:    defaultWidth,
		height:   defaultHeight,
		ready:    true,
		scatter:  opts.Config.Spatial.Scatter,
	}

	if opts.Config.UI.Dark {
		m.session.Dispatch(view.ToggleDark{})
	}
	if mode, err := view.ParseColorMode(opts.Config.UI.DefaultColorMode); err == nil && mode != view.ModeNone {
		m.session.Dispatch(view.SetColorMode{Mode: mode})
	}

	dark := m.session.State().Dark
	m.theme = NewTheme(r, dark)
	m.inspector = newInspector(dark)
	m.loadSnapshot(snap)
	m.resize()
	return m
}

// Session exposes the underlying session, mainly for tests.
func (m Model) Session() *view.Session { return m.session }

// CurrentView returns the last derived view.
func (m Model) CurrentView() view.View { return m.view }

// Cursor returns the id under the cursor, "" when the view is empty.
func (m Model) Cursor() string {
	if m.cursor < 0 || m.cursor >= len(m.order) {
		return ""
	}
	return m.order[m.cursor]
}

// Toast returns the visible status message.
func (m Model) Toast() string { return m.toast }

// Layout returns the hierarchical layout of the current snapshot.
func (m Model) Layout() layout.Result { return m.layout }

func (m Model) Init() tea.Cmd {
	if m.opts.Watcher != nil {
		return WaitForReloadCmd(m.opts.Watcher)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		m.syncInspector()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)

	case BlastRadiusMsg:
		if m.session.CommitBlastRadius(msg.Ticket, msg.Set) {
			cmds = append(cmds, m.afterDispatch())
		}

	case ContentMsg:
		st := m.session.State()
		if !m.session.ValidTicket(msg.Ticket) || msg.Ticket.NodeID != st.SelectedID {
			debug.Log("ui: dropping stale content for %s", msg.Ticket.NodeID)
			break
		}
		m.inspector.loading = false
		if msg.Err != nil {
			m.inspector.err = "Could not load file content."
			cmds = append(cmds, m.showToast(fmt.Sprintf("Failed to load %s: %v", msg.Ticket.NodeID, msg.Err), true))
		} else {
			m.inspector.code = msg.Code
		}
		m.syncInspector()

	case ExplanationMsg:
		if !m.session.ValidTicket(msg.Ticket) || msg.Ticket.NodeID != m.session.State().SelectedID {
			break
		}
		m.inspector.explaining = false
		m.inspector.explanation = msg.Explanation
		m.syncInspector()

	case AnalysisMsg:
		m.analyzing = false
		if msg.Err != nil {
			cmds = append(cmds, m.showToast(fmt.Sprintf("Analysis failed: %v", msg.Err), true))
			break
		}
		m.opts.RepoURL = msg.RepoURL
		m.replace(msg.Snapshot)
		cmds = append(cmds, m.showToast(fmt.Sprintf("Analyzed %d %s", len(msg.Snapshot.Nodes), plural(len(msg.Snapshot.Nodes), "file")), false))

	case ReloadMsg:
		cmds = append(cmds, m.handleReload(msg.Reload))
		if m.opts.Watcher != nil {
			cmds = append(cmds, WaitForReloadCmd(m.opts.Watcher))
		}

	case ExportMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.showToast(fmt.Sprintf("Export failed: %v", msg.Err), true))
		} else {
			cmds = append(cmds, m.showToast("Exported "+msg.Path, false))
		}

	case PositionsSavedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.showToast(fmt.Sprintf("Saving positions failed: %v", msg.Err), true))
		} else {
			cmds = append(cmds, m.showToast(fmt.Sprintf("Saved %d city %s", msg.Count, plural(msg.Count, "position")), false))
		}

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
			m.toastError = false
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	id := m.Cursor()

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.moveCursor(-len(m.order))
	case "G", "end":
		m.moveCursor(len(m.order))

	case "pgdown", "ctrl+d":
		m.inspector.vp.HalfViewDown()
	case "pgup", "ctrl+u":
		m.inspector.vp.HalfViewUp()

	case "enter":
		if id == "" {
			break
		}
		m.dispatch(view.Select{ID: id})
		m.inspector.open(id)
		if m.opts.Content != nil {
			ticket := m.session.Ticket(id)
			m.inspector.loading = true
			m.inspector.gen = ticket.Generation
			cmd = fetchContentCmd(m.opts.Content, ticket, m.opts.Config.ProviderTimeout())
		}
		m.syncInspector()

	case "e":
		st := m.session.State()
		if !st.InspectorOpen || m.opts.Explainer == nil || m.inspector.code == "" || m.inspector.explaining {
			break
		}
		ticket := m.session.Ticket(st.SelectedID)
		m.inspector.explaining = true
		m.inspector.explanation = ""
		m.inspector.gen = ticket.Generation
		cmd = explainCmd(m.opts.Explainer, ticket, m.inspector.code, m.opts.Config.ProviderTimeout())
		m.syncInspector()

	case "b":
		if id == "" {
			break
		}
		ticket, compute := m.session.BeginBlastRadius(id)
		cmd = blastRadiusCmd(ticket, compute)

	case "i":
		if id != "" {
			cmd = m.dispatch(view.Isolate{ID: id})
		}

	case "h":
		cmd = m.dispatch(view.ToggleHideDisconnected{})

	case "1":
		cmd = m.dispatch(view.SetColorMode{Mode: view.ModeHotspot})
	case "2":
		cmd = m.dispatch(view.SetColorMode{Mode: view.ModeComplexity})
	case "3":
		cmd = m.dispatch(view.SetColorMode{Mode: view.ModeFolder})
	case "m":
		cmd = m.dispatch(view.SetColorMode{Mode: m.session.State().ColorMode.Next()})

	case "/":
		m.searching = true
		m.search.SetValue(m.session.State().SearchQuery)
		m.search.CursorEnd()
		cmd = m.search.Focus()

	case "esc":
		cmd = m.dispatch(view.Escape{})
		if !m.session.State().Searching() {
			m.search.SetValue("")
		}

	case "r":
		cmd = m.dispatch(view.Reset{})
		m.search.SetValue("")

	case "d":
		m.dispatch(view.ToggleDark{})
		dark := m.session.State().Dark
		m.theme = NewTheme(m.renderer, dark)
		m.inspector.md = newMarkdownRenderer(dark)
		m.syncInspector()

	case "c":
		if id == "" {
			break
		}
		if err := m.opts.Clipboard(id); err != nil {
			cmd = m.showToast(fmt.Sprintf("Clipboard error: %v", err), true)
		} else {
			cmd = m.showToast("Copied "+id, false)
		}

	case "x":
		if m.view.Len() == 0 {
			cmd = m.showToast("Nothing to export", true)
			break
		}
		path := exportPath(m.exportDir(), "graph", "svg", m.opts.Now())
		cmd = exportSnapshotCmd(m.view, m.layout, export.SnapshotOptions{
			Path:    path,
			RepoURL: m.session.Store().RepoURL(),
			Layout:  m.opts.Config.LayoutOptions(),
		})

	case "X":
		path := exportPath(m.exportDir(), "city", "json", m.opts.Now())
		cmd = exportCityCmd(m.session.Store(), m.cityOptions(), path)

	case "s":
		m.scatter = !m.scatter
		cmd = m.showToast("Scatter: "+onOff(m.scatter), false)

	case "w":
		if m.view.Len() == 0 {
			cmd = m.showToast("Nothing to save", true)
			break
		}
		cmd = savePositionsCmd(m.session.Store(), m.cityOptions())

	case "a":
		if m.opts.Analyzer == nil || m.opts.RepoURL == "" || m.analyzing {
			break
		}
		m.analyzing = true
		cmd = tea.Batch(
			m.showToast("Analyzing "+m.opts.RepoURL+"…", false),
			AnalyzeCmd(m.opts.Analyzer, m.opts.RepoURL, m.opts.Config.ProviderTimeout()),
		)
	}

	if st := m.session.State(); st.InspectorOpen && st.SelectedID != m.inspector.id {
		m.inspector.open(st.SelectedID)
		m.syncInspector()
	}
	return m, cmd
}

// updateSearch handles keys while the search box has focus. The query is
// applied on every keystroke.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.dispatch(view.Search{Query: ""})
		return m, nil
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.dispatch(view.Search{Query: m.search.Value()})
		if match := m.session.State().SearchMatchID; match != "" {
			m.focus(match)
		}
	}
	return m, cmd
}

// dispatch applies ev, re-derives the view and returns the toast command
// for any notice the reducer produced.
func (m *Model) dispatch(ev view.Event) tea.Cmd {
	m.session.Dispatch(ev)
	return m.afterDispatch()
}

func (m *Model) afterDispatch() tea.Cmd {
	m.refresh()
	if m.inspector.abandon(m.session.State().Generation) {
		m.syncInspector()
	}
	if notice := m.session.State().Notice; notice != "" {
		return m.showToast(notice, false)
	}
	return nil
}

func (m *Model) showToast(text string, isError bool) tea.Cmd {
	m.toastSeq++
	m.toast = text
	m.toastError = isError
	return toastExpiryCmd(m.toastSeq, m.opts.Config.ToastDuration())
}

func (m *Model) handleReload(r watcher.Reload) tea.Cmd {
	if r.Err != nil {
		if errors.Is(r.Err, watcher.ErrFileRemoved) {
			return m.showToast("Snapshot file removed; keeping the current graph", true)
		}
		return m.showToast(fmt.Sprintf("Reload failed: %v", r.Err), true)
	}
	diff := datasource.DiffSnapshots(m.snapshot, r.Snapshot)
	m.replace(r.Snapshot)
	return m.showToast("Reloaded: "+diff.Summary(), false)
}

// replace swaps in a new snapshot, dropping all derived state.
func (m *Model) replace(snap model.Snapshot) {
	m.session.Replace(snap)
	m.inspector.open("")
	m.search.SetValue("")
	m.searching = false
	m.loadSnapshot(snap)
}

// loadSnapshot lays out the session's snapshot and starts a fresh position
// cache. An export still simulating keeps the old cache to itself.
func (m *Model) loadSnapshot(snap model.Snapshot) {
	m.snapshot = snap
	s := m.session.Store()
	m.layout = layout.Hierarchical(s.Nodes(), s.Edges(), m.opts.Config.LayoutOptions())
	m.position = make(map[string]model.Point, len(m.layout.Nodes))
	for _, n := range m.layout.Nodes {
		if n.Position != nil {
			m.position[n.ID] = *n.Position
		}
	}
	m.cache = spatial.NewCache(spatial.NewMemoryStore(), m.opts.Config.Spatial.Tuning)
	m.cache.SetAutoSave(m.opts.Config.Spatial.AutoSave)
	m.cursor = 0
	m.refresh()
	for _, w := range s.Warnings() {
		debug.Log("ui: snapshot warning: %s", w)
	}
}

// refresh re-derives the view and recomputes the screen order, keeping the
// cursor on the same file when it is still visible.
func (m *Model) refresh() {
	current := m.Cursor()
	m.view = m.session.View()

	order := make([]string, 0, len(m.view.Nodes))
	for _, n := range m.view.Nodes {
		order = append(order, n.ID)
	}
	slices.SortStableFunc(order, func(a, b string) int {
		pa, okA := m.position[a]
		pb, okB := m.position[b]
		if okA != okB {
			if okA {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(pa.Y, pb.Y); c != 0 {
			return c
		}
		return cmp.Compare(pa.X, pb.X)
	})
	m.order = order

	m.cursor = 0
	if i := slices.Index(order, current); i >= 0 {
		m.cursor = i
	}
}

func (m *Model) moveCursor(delta int) {
	if len(m.order) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.order)-1)
	m.dispatch(view.Hover{ID: m.order[m.cursor]})
}

// focus moves the cursor to id without hovering it.
func (m *Model) focus(id string) {
	if i := slices.Index(m.order, id); i >= 0 {
		m.cursor = i
	}
}

func (m *Model) syncInspector() {
	if m.session.State().InspectorOpen {
		m.inspector.sync(m.theme, m.session.Store())
	}
}

func (m *Model) resize() {
	_, sideW := m.paneWidths()
	m.inspector.setSize(sideW-4, m.bodyHeight()-2)
	m.search.Width = max(m.width-10, 10)
}

// cityOptions builds the city against the explorer's position cache with
// the current view settings.
func (m Model) cityOptions() export.CityOptions {
	st := m.session.State()
	return export.CityOptions{
		Cache:            m.cache,
		ColorMode:        st.ColorMode,
		Dark:             st.Dark,
		HideDisconnected: st.HideDisconnected,
		Scatter:          m.scatter,
	}
}

func (m Model) exportDir() string {
	if m.opts.ExportDir != "" {
		return m.opts.ExportDir
	}
	return "."
}

func (m Model) bodyHeight() int {
	return max(m.height-2, 3)
}

// paneWidths splits the body between the file list and the side panel.
func (m Model) paneWidths() (list, side int) {
	side = min(max(m.width*2/5, 30), 70)
	if side > m.width-20 {
		side = m.width / 2
	}
	return m.width - side, side
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	listW, sideW := m.paneWidths()
	bodyH := m.bodyHeight()

	list := m.renderGraphPane(listW, bodyH)
	var side string
	if m.session.State().InspectorOpen {
		side = m.theme.FocusedPanel.Width(sideW - 2).Height(bodyH - 2).Render(m.inspector.vp.View())
	} else {
		side = m.theme.Panel.Width(sideW - 2).Height(bodyH - 2).Render(m.renderLegend(sideW - 4))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, side)
	out := lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
	return lipgloss.NewStyle().Width(m.width).Height(m.height).MaxHeight(m.height).Render(out)
}

func (m Model) renderHeader() string {
	st := m.session.State()
	s := m.session.Store()
	parts := []string{"depcity"}
	if url := s.RepoURL(); url != "" {
		parts = append(parts, config.RepoName(url))
	}
	parts = append(parts, fmt.Sprintf("%d/%d %s", m.view.Len(), s.Len(), plural(s.Len(), "file")))
	parts = append(parts, st.ColorMode.Title())
	if st.IsolatedID != "" {
		parts = append(parts, "isolated: "+st.IsolatedID)
	}
	if st.HideDisconnected {
		parts = append(parts, "connected only")
	}
	if m.scatter {
		parts = append(parts, "scatter")
	}
	if m.opts.Watcher != nil && m.opts.Watcher.IsPolling() {
		parts = append(parts, "polling")
	}
	return m.theme.Header.Width(m.width).Render(truncate(strings.Join(parts, " · "), m.width-2))
}

func (m Model) renderFooter() string {
	if m.searching {
		return m.search.View()
	}
	if m.toast != "" {
		style := m.theme.Toast
		if m.toastError {
			style = m.theme.ToastError
		}
		return style.Render(truncate(m.toast, m.width-2))
	}
	if q := m.session.State().SearchQuery; q != "" {
		return m.theme.MutedText.Render("search: "+q+"  ") + renderHints(m.theme, footerHints[:4])
	}
	return renderHints(m.theme, footerHints)
}
