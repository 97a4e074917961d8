package spatial

import (
	"context"
	"math"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/model"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const (
	alphaMin       = 0.001
	initialRadius  = 10.0
	minDistance2   = 1.0
	goldenAngle    = math.Pi * (3 - 2.2360679774997896) // pi * (3 - sqrt 5)
	defaultTickCap = 300
)

type body struct {
	id         string
	loc        int
	x, y, z    float64
	vx, vy, vz float64
	pinned     bool
	fx, fy, fz float64
	depth      int
}

type link struct {
	s, t     int
	strength float64
	bias     float64
}

// Simulation is a deterministic headless 3D force layout: many-body
// repulsion, link springs, velocity decay and an optional top-down layer
// constraint. Every step hands its frame to the Cache.
type Simulation struct {
	cache     *Cache
	hasCycles bool
	params    Params

	bodies []body
	index  map[string]int
	links  []link
	depths int

	alpha      float64
	alphaDecay float64
	ticks      int
}

// NewSimulation seeds a simulation for nodes and edges from cache. Edges
// with unknown endpoints and self edges exert no force.
func NewSimulation(nodes []model.Node, edges []model.Edge, cache *Cache) *Simulation {
	hasCycles := false
	for _, e := range edges {
		if e.IsCyclic {
			hasCycles = true
			break
		}
	}

	s := &Simulation{
		cache:      cache,
		hasCycles:  hasCycles,
		index:      make(map[string]int, len(nodes)),
		alpha:      1,
		alphaDecay: 1 - math.Pow(alphaMin, 1.0/defaultTickCap),
	}

	for i, seed := range cache.Seed(nodes) {
		b := body{id: seed.ID, loc: seed.LOC}
		if seed.Cached {
			b.x, b.y, b.z = seed.X, seed.Y, seed.Z
			if seed.Pinned() {
				b.pinned = true
				b.fx, b.fy, b.fz = *seed.FX, *seed.FY, *seed.FZ
			}
		} else {
			b.x, b.y, b.z = spiral(i)
		}
		s.index[b.id] = len(s.bodies)
		s.bodies = append(s.bodies, b)
	}

	degree := make([]int, len(s.bodies))
	for _, e := range edges {
		si, okS := s.index[e.Source]
		ti, okT := s.index[e.Target]
		if !okS || !okT || si == ti {
			continue
		}
		s.links = append(s.links, link{s: si, t: ti})
		degree[si]++
		degree[ti]++
	}
	for i := range s.links {
		l := &s.links[i]
		l.strength = 1 / float64(min(degree[l.s], degree[l.t]))
		l.bias = float64(degree[l.s]) / float64(degree[l.s]+degree[l.t])
	}

	s.params = cache.Params(hasCycles)
	if s.params.DagMode == DagTopDown && !s.computeDepths() {
		s.params.DagMode = ""
	}
	return s
}

// spiral spreads unseeded nodes on a deterministic 3D phyllotaxis.
func spiral(i int) (x, y, z float64) {
	r := initialRadius * math.Cbrt(0.5+float64(i))
	roll := float64(i) * goldenAngle
	yaw := float64(i) * math.Pi * 20 / (9 + math.Sqrt(221))
	return r * math.Sin(roll) * math.Cos(yaw), r * math.Cos(roll), r * math.Sin(roll) * math.Sin(yaw)
}

// computeDepths assigns longest-path depths for dag mode. It reports false
// when the links contain a cycle that the cyclic flags did not announce.
func (s *Simulation) computeDepths() bool {
	g := simple.NewDirectedGraph()
	for i := range s.bodies {
		g.AddNode(simple.Node(i))
	}
	for _, l := range s.links {
		g.SetEdge(simple.Edge{F: simple.Node(l.s), T: simple.Node(l.t)})
	}
	sorted, err := topo.Sort(g)
	if err != nil {
		debug.Log("spatial: dag mode disabled: %v", err)
		return false
	}
	for _, n := range sorted {
		d := 0
		parents := g.To(n.ID())
		for parents.Next() {
			d = max(d, s.bodies[parents.Node().ID()].depth+1)
		}
		s.bodies[n.ID()].depth = d
		s.depths = max(s.depths, d)
	}
	return true
}

// Params returns the parameters the simulation runs with.
func (s *Simulation) Params() Params { return s.params }

// Alpha returns the current heat; the simulation settles below 0.001.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Ticks returns the number of steps run so far.
func (s *Simulation) Ticks() int { return s.ticks }

// Settled reports whether the simulation has cooled down.
func (s *Simulation) Settled() bool { return s.alpha < alphaMin }

// Reheat restarts the simulation at full heat with the cache's current
// parameters, e.g. after scatter was toggled.
func (s *Simulation) Reheat() {
	s.alpha = 1
	dag := s.params.DagMode
	s.params = s.cache.Params(s.hasCycles)
	if s.params.DagMode == DagTopDown && dag != DagTopDown && !s.computeDepths() {
		s.params.DagMode = ""
	}
}

// Drag moves a node to at and pins it there.
func (s *Simulation) Drag(id string, at Coordinates) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	pinned := s.cache.DragEnd(id, at)
	b := &s.bodies[i]
	b.x, b.y, b.z = pinned.X, pinned.Y, pinned.Z
	b.vx, b.vy, b.vz = 0, 0, 0
	b.pinned = true
	b.fx, b.fy, b.fz = pinned.X, pinned.Y, pinned.Z
}

// Step advances one tick, hands the frame to the cache and returns it.
func (s *Simulation) Step() Frame {
	s.alpha += -s.alpha * s.alphaDecay
	s.ticks++

	s.applyCharge()
	s.applyLinks()

	decay := 1 - s.params.VelocityDecay
	mid := float64(s.depths) / 2
	for i := range s.bodies {
		b := &s.bodies[i]
		if b.pinned {
			b.x, b.y, b.z = b.fx, b.fy, b.fz
			b.vx, b.vy, b.vz = 0, 0, 0
			continue
		}
		b.vx *= decay
		b.vy *= decay
		b.vz *= decay
		b.x += b.vx
		b.y += b.vy
		b.z += b.vz
		if s.params.DagMode == DagTopDown {
			b.y = (mid - float64(b.depth)) * s.params.DagLevelDistance
			b.vy = 0
		}
	}

	frame := s.Frame()
	s.cache.Tick(frame)
	return frame
}

// Run performs the warm-up ticks and then the cool-down ticks, calling
// onFrame (if non-nil) after each cool-down tick. It stops early when ctx
// is done or the simulation settles, and returns the last frame.
func (s *Simulation) Run(ctx context.Context, onFrame func(Frame)) (Frame, error) {
	for i := 0; i < s.params.WarmupTicks; i++ {
		if err := ctx.Err(); err != nil {
			return s.Frame(), err
		}
		s.Step()
	}
	frame := s.Frame()
	for i := 0; i < s.params.CooldownTicks && !s.Settled(); i++ {
		if err := ctx.Err(); err != nil {
			return frame, err
		}
		frame = s.Step()
		if onFrame != nil {
			onFrame(frame)
		}
	}
	return frame, nil
}

// Frame snapshots the current coordinates in node input order.
func (s *Simulation) Frame() Frame {
	frame := make(Frame, len(s.bodies))
	for i, b := range s.bodies {
		c := Coordinates{X: b.x, Y: b.y, Z: b.z}
		if b.pinned {
			fx, fy, fz := b.fx, b.fy, b.fz
			c.FX, c.FY, c.FZ = &fx, &fy, &fz
		}
		frame[i] = NodeState{ID: b.id, Coordinates: c}
	}
	return frame
}

// Height returns the building height of id, 0 for unknown ids.
func (s *Simulation) Height(id string) float64 {
	i, ok := s.index[id]
	if !ok {
		return 0
	}
	return BuildingHeight(s.bodies[i].loc)
}

// applyCharge is an exact O(n^2) many-body force.
func (s *Simulation) applyCharge() {
	strength := s.params.Charge * s.alpha
	for i := range s.bodies {
		a := &s.bodies[i]
		for j := i + 1; j < len(s.bodies); j++ {
			b := &s.bodies[j]
			dx, dy, dz := b.x-a.x, b.y-a.y, b.z-a.z
			l2 := dx*dx + dy*dy + dz*dz
			if l2 < minDistance2 {
				// Coincident bodies get a deterministic nudge apart.
				dx, dy, dz = jiggle(i, j), jiggle(j, i), jiggle(i+j, i)
				l2 = max(dx*dx+dy*dy+dz*dz, minDistance2)
			}
			w := strength / l2
			// Negative strength pushes b away from a and a away from b.
			a.vx += dx * w
			a.vy += dy * w
			a.vz += dz * w
			b.vx -= dx * w
			b.vy -= dy * w
			b.vz -= dz * w
		}
	}
}

func jiggle(a, b int) float64 {
	return (float64((a*31+b*17)%13) - 6) * 1e-3
}

// applyLinks pulls linked bodies towards the link distance.
func (s *Simulation) applyLinks() {
	distance := s.params.LinkDistance
	for _, l := range s.links {
		src, tgt := &s.bodies[l.s], &s.bodies[l.t]
		dx := tgt.x + tgt.vx - src.x - src.vx
		dy := tgt.y + tgt.vy - src.y - src.vy
		dz := tgt.z + tgt.vz - src.z - src.vz
		d := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if d == 0 {
			continue
		}
		k := (d - distance) / d * s.alpha * l.strength
		dx, dy, dz = dx*k, dy*k, dz*k
		tgt.vx -= dx * l.bias
		tgt.vy -= dy * l.bias
		tgt.vz -= dz * l.bias
		src.vx += dx * (1 - l.bias)
		src.vy += dy * (1 - l.bias)
		src.vz += dz * (1 - l.bias)
	}
}
