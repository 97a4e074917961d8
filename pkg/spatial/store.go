// Package spatial keeps the 3D city view stable: a position store keyed by
// node id that survives re-derivations of the view, the parameters that
// steer the force simulation, and a headless simulation that drives both.
package spatial

import "sync"

// Coordinates is a node's last known position plus its optional pin.
type Coordinates struct {
	X, Y, Z    float64
	FX, FY, FZ *float64 `json:",omitempty"`
}

// Pinned reports whether the node is fixed in place.
func (c Coordinates) Pinned() bool {
	return c.FX != nil && c.FY != nil && c.FZ != nil
}

// Pin fixes the node at its current coordinates.
func (c Coordinates) Pin() Coordinates {
	x, y, z := c.X, c.Y, c.Z
	c.FX, c.FY, c.FZ = &x, &y, &z
	return c
}

// clone copies the pin pointers so stored values never alias the caller's.
func (c Coordinates) clone() Coordinates {
	if c.FX != nil {
		v := *c.FX
		c.FX = &v
	}
	if c.FY != nil {
		v := *c.FY
		c.FY = &v
	}
	if c.FZ != nil {
		v := *c.FZ
		c.FZ = &v
	}
	return c
}

// PositionStore maps node ids to coordinates.
type PositionStore interface {
	Get(id string) (Coordinates, bool)
	Put(id string, c Coordinates)
	// Replace drops every entry and stores m instead.
	Replace(m map[string]Coordinates)
	Clear()
	Len() int
}

// MemoryStore is an in-process PositionStore. Safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]Coordinates
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]Coordinates)}
}

func (s *MemoryStore) Get(id string) (Coordinates, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.m[id]
	if !ok {
		return Coordinates{}, false
	}
	return c.clone(), true
}

func (s *MemoryStore) Put(id string, c Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = c.clone()
}

func (s *MemoryStore) Replace(m map[string]Coordinates) {
	next := make(map[string]Coordinates, len(m))
	for id, c := range m {
		next[id] = c.clone()
	}
	s.mu.Lock()
	s.m = next
	s.mu.Unlock()
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.m = make(map[string]Coordinates)
	s.mu.Unlock()
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
