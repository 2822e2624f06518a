package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// Coord identifies a map in the world: all maps share one size and live
// at a unique (X, Y, Z).
type Coord struct {
	X, Y, Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("%d:%d:%d", c.X, c.Y, c.Z)
}

// Store hands out maps by coordinate with generate-or-load-and-cache
// semantics. Implementations decide how layouts are produced and whether
// they persist.
type Store interface {
	Get(c Coord) (*Map, error)
}

// floorFile is the on-disk shape of a persisted layout.
type floorFile struct {
	FloorLayer [][]Cell `json:"floor_layer"`
}

// Manager generates, caches, and optionally persists maps. Every map it
// returns already carries its resident ghost.
type Manager struct {
	broadcast Broadcaster
	width     int
	height    int
	dir       string // empty disables persistence
	rng       *rand.Rand
	store     map[Coord]*Map
}

// NewManager builds a map manager. dir is the persistence directory; an
// empty dir keeps maps in memory only.
func NewManager(b Broadcaster, width, height int, dir string, rng *rand.Rand) *Manager {
	return &Manager{
		broadcast: b,
		width:     width,
		height:    height,
		dir:       dir,
		rng:       rng,
		store:     make(map[Coord]*Map),
	}
}

// Get returns the map at c, loading it from disk or generating (and
// saving) it on first access.
func (mgr *Manager) Get(c Coord) (*Map, error) {
	if m, ok := mgr.store[c]; ok {
		return m, nil
	}

	m := NewMap(mgr.broadcast, mgr.width, mgr.height)

	loaded := false
	if mgr.dir != "" {
		switch err := mgr.load(c, m); {
		case err == nil:
			loaded = true
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("load map %s: %w", c, err)
		}
	}
	if !loaded {
		m.floor = GenerateFloor(mgr.rng, mgr.width, mgr.height)
		if mgr.dir != "" {
			if err := mgr.save(c, m); err != nil {
				return nil, fmt.Errorf("save map %s: %w", c, err)
			}
		}
	}

	mgr.seedGhost(m)
	mgr.store[c] = m
	return m, nil
}

// seedGhost places the map's resident roamer. Sprites are never
// persisted, so loaded maps get one too.
func (mgr *Manager) seedGhost(m *Map) {
	x, y := 15, 15
	if !m.IsCollisionFree(x, y) {
		var ok bool
		if x, y, ok = m.FindFree(x, y); !ok {
			return
		}
	}
	m.AddSprite(NewGhostSprite("example", x, y, mgr.rng))
}

func (mgr *Manager) path(c Coord) string {
	return filepath.Join(mgr.dir, c.String()+".map")
}

func (mgr *Manager) load(c Coord, m *Map) error {
	raw, err := os.ReadFile(mgr.path(c))
	if err != nil {
		return err
	}
	var f floorFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}
	if len(f.FloorLayer) != mgr.width {
		return fmt.Errorf("layout is %d columns, want %d", len(f.FloorLayer), mgr.width)
	}
	for x, col := range f.FloorLayer {
		if len(col) != mgr.height {
			return fmt.Errorf("column %d has %d cells, want %d", x, len(col), mgr.height)
		}
	}
	m.floor = f.FloorLayer
	return nil
}

func (mgr *Manager) save(c Coord, m *Map) error {
	if err := os.MkdirAll(mgr.dir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(floorFile{FloorLayer: m.floor})
	if err != nil {
		return err
	}
	return os.WriteFile(mgr.path(c), raw, 0o644)
}
