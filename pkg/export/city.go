package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/spatial"
	"github.com/vanderheijden86/depcity/pkg/view"
)

// Building is one file of the 3D city.
type Building struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	LOC    int     `json:"loc"`
	Churn  int     `json:"churn"`
	Pinned bool    `json:"pinned,omitempty"`
}

// Street is one import between two buildings.
type Street struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Cyclic bool   `json:"cyclic,omitempty"`
}

// City is a settled 3D layout plus the parameters a 3D backend needs to
// keep simulating it.
type City struct {
	RepoURL   string         `json:"repo_url,omitempty"`
	Params    spatial.Params `json:"params"`
	Ticks     int            `json:"ticks"`
	Buildings []Building     `json:"buildings"`
	Streets   []Street       `json:"streets"`
}

// CityOptions controls BuildCity.
type CityOptions struct {
	// Cache seeds the simulation and receives its frames. Nil runs on a
	// throwaway cache with the default tuning.
	Cache     *spatial.Cache
	ColorMode view.ColorMode
	Dark      bool
	// HideDisconnected drops files without any import from the city.
	HideDisconnected bool
	// Scatter spreads the city with the scatter force constants. Switching
	// it relative to the cache's last setting reheats the simulation.
	Scatter bool
	// Pins fixes files at the given coordinates, as if they were dragged
	// there. Unknown ids are ignored.
	Pins map[string]spatial.Coordinates
	// SavePositions stores the settled layout in Cache even with auto-save
	// off.
	SavePositions bool
}

// BuildCity runs the headless force simulation over s and returns the
// resulting city.
func BuildCity(ctx context.Context, s *graph.Store, opts CityOptions) (City, error) {
	defer metrics.Timer(metrics.Export)()

	sub := view.Filter(s, view.FilterOptions{HideDisconnected: opts.HideDisconnected})
	if len(sub.Nodes) == 0 {
		return City{}, ErrEmptyView
	}

	cache := opts.Cache
	if cache == nil {
		cache = spatial.NewCache(spatial.NewMemoryStore(), spatial.DefaultTuning())
	}

	sim := spatial.NewSimulation(sub.Nodes, sub.Edges, cache)
	if cache.SetScatter(opts.Scatter) {
		sim.Reheat()
	}
	for id, at := range opts.Pins {
		sim.Drag(id, at)
	}
	frame, err := sim.Run(ctx, nil)
	if err != nil {
		return City{}, fmt.Errorf("simulating city: %w", err)
	}
	if opts.SavePositions {
		cache.Save(frame)
	}

	city := City{
		RepoURL:   s.RepoURL(),
		Params:    sim.Params(),
		Ticks:     sim.Ticks(),
		Buildings: make([]Building, 0, len(frame)),
		Streets:   make([]Street, 0, len(sub.Edges)),
	}
	for _, st := range frame {
		n, _ := s.Node(st.ID)
		city.Buildings = append(city.Buildings, Building{
			ID:     n.ID,
			Label:  n.Label,
			X:      st.X,
			Y:      st.Y,
			Z:      st.Z,
			Height: sim.Height(st.ID),
			Color:  view.Resolve(view.NodeColor(n, opts.ColorMode, nil), opts.Dark),
			LOC:    n.Metadata.LinesOfCode,
			Churn:  n.Metadata.Churn,
			Pinned: st.Pinned(),
		})
	}
	for _, e := range sub.Edges {
		city.Streets = append(city.Streets, Street{Source: e.Source, Target: e.Target, Cyclic: e.IsCyclic})
	}
	return city, nil
}

// JSON returns the city as indented JSON.
func (c City) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveCity writes the city JSON to path.
func SaveCity(path string, c City) error {
	data, err := c.JSON()
	if err != nil {
		return fmt.Errorf("encoding city: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
