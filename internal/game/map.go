// Package game implements the authoritative map/entity model: a bounded
// grid with a static floor layer and a dynamic movable layer, sprites
// that move subject to collision, map generation and storage, and the
// per-user world state driven by the server loop.
package game

import (
	"sort"

	"github.com/Ko-stant/grid-depths-engine/internal/fov"
)

// Cell is one tile of the floor layer. The string values are part of the
// wire and on-disk encodings.
type Cell string

const (
	CellWall  Cell = "wall"
	CellFloor Cell = "floor"
)

// Broadcaster fans an update out to every connected client. The server
// loop owns the real implementation; maps call it when a sprite moves.
type Broadcaster interface {
	BroadcastUpdate(action string, data map[string]any)
}

// Map is a single grid of Width×Height cells with all sprites on it.
// It is mutated only through MoveSprite/Step/AddSprite/RemoveSprite, and
// only from the server loop goroutine.
type Map struct {
	Width, Height int

	floor     [][]Cell   // floor[x][y], static once generated
	movable   [][]Sprite // movable[x][y], nil when the cell is empty
	sprites   map[string]Sprite
	broadcast Broadcaster
}

// NewMap allocates an empty map whose floor is all walls.
func NewMap(b Broadcaster, width, height int) *Map {
	m := &Map{
		Width:     width,
		Height:    height,
		floor:     make([][]Cell, width),
		movable:   make([][]Sprite, width),
		sprites:   make(map[string]Sprite),
		broadcast: b,
	}
	for x := range width {
		m.floor[x] = make([]Cell, height)
		m.movable[x] = make([]Sprite, height)
		for y := range height {
			m.floor[x][y] = CellWall
		}
	}
	return m
}

// FloorAt returns the floor cell, treating out-of-bounds as wall.
func (m *Map) FloorAt(x, y int) Cell {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return CellWall
	}
	return m.floor[x][y]
}

// SetFloor carves or fills one cell.
func (m *Map) SetFloor(x, y int, c Cell) {
	m.floor[x][y] = c
}

// SpriteAt returns the sprite occupying (x, y), or nil.
func (m *Map) SpriteAt(x, y int) Sprite {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return nil
	}
	return m.movable[x][y]
}

// IsCollisionFree reports whether a sprite can occupy (x, y): in bounds,
// floor (not wall), and no sprite already there.
func (m *Map) IsCollisionFree(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.movable[x][y] == nil && m.floor[x][y] == CellFloor
}

// AddSprite registers a sprite and occupies its cell. It fails when the
// target cell is not collision free.
func (m *Map) AddSprite(s Sprite) bool {
	x, y := s.Position()
	if !m.IsCollisionFree(x, y) {
		return false
	}
	m.sprites[s.ID()] = s
	m.movable[x][y] = s
	return true
}

// RemoveSprite vacates the sprite's cell and forgets it.
func (m *Map) RemoveSprite(id string) {
	s, ok := m.sprites[id]
	if !ok {
		return
	}
	x, y := s.Position()
	if occupant := m.movable[x][y]; occupant != nil && occupant.ID() == id {
		m.movable[x][y] = nil
	}
	delete(m.sprites, id)
}

// Sprite returns a registered sprite by id.
func (m *Map) Sprite(id string) (Sprite, bool) {
	s, ok := m.sprites[id]
	return s, ok
}

// MoveSprite moves a sprite by (dx, dy). On success it atomically vacates
// the old cell, occupies the new one, updates the sprite's coordinates,
// and broadcasts a position update. On collision it reports false without
// mutating anything.
func (m *Map) MoveSprite(s Sprite, dx, dy int) bool {
	// The movable layer must hold the registered sprite. Step reaches
	// here through an embedded receiver, which is the same sprite under
	// a different interface value.
	if registered, ok := m.sprites[s.ID()]; ok {
		s = registered
	}
	x, y := s.Position()
	nx, ny := x+dx, y+dy
	if !m.IsCollisionFree(nx, ny) {
		return false
	}

	m.movable[x][y] = nil
	s.setPosition(nx, ny)
	m.movable[nx][ny] = s

	if m.broadcast != nil {
		m.broadcast.BroadcastUpdate("position", map[string]any{
			"x":      nx,
			"y":      ny,
			"entity": s.ID(),
		})
	}
	return true
}

// Step advances every sprite by one tick. Sprites run in id order so a
// tick is deterministic for a given state.
func (m *Map) Step() {
	ids := make([]string, 0, len(m.sprites))
	for id := range m.sprites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		// A sprite may have been removed by an earlier step this tick.
		if s, ok := m.sprites[id]; ok {
			s.Step(m)
		}
	}
}

// BlocksSight reports whether the cell obstructs vision. Only walls
// block; sprites do not.
func (m *Map) BlocksSight(x, y int) bool {
	return m.FloorAt(x, y) == CellWall
}

// VisibleFrom computes the field of vision from (x, y).
func (m *Map) VisibleFrom(x, y, radius int) map[fov.Point]bool {
	return fov.Compute(x, y, radius, m.BlocksSight)
}

// EncodeFloor returns the floor layer in its wire/disk shape.
func (m *Map) EncodeFloor() map[string]any {
	return map[string]any{"floor_layer": m.floor}
}

// FindFree scans row-major from (startX, startY) for the first collision
// free cell, wrapping across the whole map. It returns false when the map
// is completely occupied.
func (m *Map) FindFree(startX, startY int) (int, int, bool) {
	for i := range m.Width * m.Height {
		idx := (startY*m.Width + startX + i) % (m.Width * m.Height)
		x := idx % m.Width
		y := idx / m.Width
		if m.IsCollisionFree(x, y) {
			return x, y, true
		}
	}
	return 0, 0, false
}
