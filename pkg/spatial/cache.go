package spatial

import (
	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// NodeState is one node's coordinates in a simulation frame.
type NodeState struct {
	ID string
	Coordinates
}

// Frame is the coordinates of every node currently in the simulation.
type Frame []NodeState

// Tuning holds the force constants for normal and scattered layouts.
type Tuning struct {
	Charge              float64 `yaml:"charge"`
	ScatterCharge       float64 `yaml:"scatter_charge"`
	LinkDistance        float64 `yaml:"link_distance"`
	ScatterLinkDistance float64 `yaml:"scatter_link_distance"`
	DagLevelDistance    float64 `yaml:"dag_level_distance"`
	VelocityDecay       float64 `yaml:"velocity_decay"`
	Ticks               int     `yaml:"ticks"`
}

// DefaultTuning returns the standard force constants.
func DefaultTuning() Tuning {
	return Tuning{
		Charge:              -120,
		ScatterCharge:       -2000,
		LinkDistance:        30,
		ScatterLinkDistance: 100,
		DagLevelDistance:    80,
		VelocityDecay:       0.3,
		Ticks:               100,
	}
}

// DagTopDown is the DagMode value for a layered top-down simulation.
const DagTopDown = "td"

// Params are what a 3D backend needs to configure its simulation.
type Params struct {
	Charge           float64 `json:"charge"`
	LinkDistance     float64 `json:"link_distance"`
	DagMode          string  `json:"dag_mode,omitempty"` // "td" or ""
	DagLevelDistance float64 `json:"dag_level_distance"`
	VelocityDecay    float64 `json:"velocity_decay"`
	WarmupTicks      int     `json:"warmup_ticks"`
	CooldownTicks    int     `json:"cooldown_ticks"`
}

// Seed is a node ready to enter the simulation. Cached is false when the
// simulation should place the node itself.
type Seed struct {
	ID     string
	LOC    int
	Cached bool
	Coordinates
}

// Cache is the Spatial Position Cache: it seeds simulations with the last
// saved coordinates and decides when new coordinates are saved.
type Cache struct {
	store    PositionStore
	tuning   Tuning
	autoSave bool
	scatter  bool
}

// NewCache wraps store. A nil store gets a fresh MemoryStore.
func NewCache(store PositionStore, tuning Tuning) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cache{store: store, tuning: tuning}
}

// Seed pairs each node with its cached coordinates, if any.
func (c *Cache) Seed(nodes []model.Node) []Seed {
	out := make([]Seed, len(nodes))
	for i, n := range nodes {
		s := Seed{ID: n.ID, LOC: n.Metadata.LinesOfCode}
		if coords, ok := c.store.Get(n.ID); ok {
			s.Cached = true
			s.Coordinates = coords
		}
		out[i] = s
	}
	return out
}

// Tick records a simulation step. With auto-save on, the store is replaced
// by the frame; otherwise nothing happens. It reports whether it saved.
func (c *Cache) Tick(frame Frame) bool {
	if !c.autoSave {
		return false
	}
	defer metrics.Timer(metrics.SpatialTick)()
	c.replace(frame)
	return true
}

// Save replaces the store with frame regardless of auto-save.
func (c *Cache) Save(frame Frame) {
	c.replace(frame)
	debug.Log("spatial: saved %d positions", len(frame))
}

func (c *Cache) replace(frame Frame) {
	m := make(map[string]Coordinates, len(frame))
	for _, ns := range frame {
		m[ns.ID] = ns.Coordinates
	}
	c.store.Replace(m)
}

// DragEnd pins the node where it was dropped and returns the pinned
// coordinates. The pin is persisted immediately only with auto-save on.
func (c *Cache) DragEnd(id string, at Coordinates) Coordinates {
	pinned := at.Pin()
	if c.autoSave {
		c.store.Put(id, pinned)
	}
	return pinned
}

// SetAutoSave toggles continuous saving.
func (c *Cache) SetAutoSave(on bool) { c.autoSave = on }

// AutoSave reports whether continuous saving is on.
func (c *Cache) AutoSave() bool { return c.autoSave }

// SetScatter toggles the spread-out force constants. It reports whether the
// simulation must be reheated, which is whenever the value changes.
func (c *Cache) SetScatter(on bool) bool {
	changed := c.scatter != on
	c.scatter = on
	return changed
}

// Scatter reports whether scatter is on.
func (c *Cache) Scatter() bool { return c.scatter }

// HasPositions reports whether any coordinates are cached.
func (c *Cache) HasPositions() bool { return c.store.Len() > 0 }

// Len returns the number of cached positions.
func (c *Cache) Len() int { return c.store.Len() }

// Clear forgets every cached position. Called on snapshot replacement.
func (c *Cache) Clear() { c.store.Clear() }

// Params derives the simulation parameters. Layered top-down mode only runs
// with no cached positions, no cyclic edges and scatter off. A warm start
// from cached positions skips the warm-up and cool-down ticks.
func (c *Cache) Params(hasCycles bool) Params {
	t := c.tuning
	p := Params{
		Charge:           t.Charge,
		LinkDistance:     t.LinkDistance,
		DagLevelDistance: t.DagLevelDistance,
		VelocityDecay:    t.VelocityDecay,
		WarmupTicks:      t.Ticks,
		CooldownTicks:    t.Ticks,
	}
	if c.scatter {
		p.Charge = t.ScatterCharge
		p.LinkDistance = t.ScatterLinkDistance
	}
	saved := c.HasPositions()
	if !saved && !hasCycles && !c.scatter {
		p.DagMode = DagTopDown
	}
	if saved && !c.scatter {
		p.WarmupTicks, p.CooldownTicks = 0, 0
	}
	return p
}

// BuildingHeight is the height of a file's building in the city view.
func BuildingHeight(loc int) float64 {
	return max(10, float64(loc)/3)
}
