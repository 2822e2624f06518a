package main

import (
	"sort"
	"strings"
	"sync"

	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
)

// view is the client's picture of the world: the floor layer from
// get_map plus the last known position of every entity. Position updates
// arrive on the session goroutine while the render loop reads, so the
// whole thing is guarded by one mutex.
type view struct {
	mu       sync.Mutex
	self     string
	floor    [][]string // floor[x][y]
	entities map[string][2]int
}

func newView(selfEntity string) *view {
	return &view{
		self:     selfEntity,
		entities: make(map[string][2]int),
	}
}

// ApplyFloor installs the floor layer from a get_map response. The wire
// shape is column-major: floor_layer[x][y].
func (v *view) ApplyFloor(data map[string]any) {
	cols, ok := data["floor_layer"].([]any)
	if !ok {
		return
	}
	floor := make([][]string, 0, len(cols))
	for _, col := range cols {
		cells, ok := col.([]any)
		if !ok {
			return
		}
		column := make([]string, 0, len(cells))
		for _, cell := range cells {
			s, _ := cell.(string)
			column = append(column, s)
		}
		floor = append(floor, column)
	}
	v.mu.Lock()
	v.floor = floor
	v.mu.Unlock()
}

// ApplyPosition records an entity's position from a position update.
func (v *view) ApplyPosition(data map[string]any) {
	x, okX := protocol.IntArg(data, "x")
	y, okY := protocol.IntArg(data, "y")
	entity, okE := data["entity"].(string)
	if !okX || !okY || !okE {
		return
	}
	v.mu.Lock()
	v.entities[entity] = [2]int{x, y}
	v.mu.Unlock()
}

// Forget drops an entity, used when the server stops reporting it.
func (v *view) Forget(entity string) {
	v.mu.Lock()
	delete(v.entities, entity)
	v.mu.Unlock()
}

// glyph picks the character drawn for an entity.
func (v *view) glyph(entity string) string {
	if entity == v.self {
		return "@"
	}
	kind, _, _ := strings.Cut(entity, ":")
	if kind == "" {
		return "?"
	}
	return kind[:1]
}

// Render draws the floor and all entities onto the screen. Entities are
// drawn in sorted order so overlapping draws are deterministic, with the
// player last so it always shows on top.
func (v *view) Render(s Screen) {
	v.mu.Lock()
	defer v.mu.Unlock()

	height := 0
	if len(v.floor) > 0 {
		height = len(v.floor[0])
	}
	for y := 0; y < height; y++ {
		var line strings.Builder
		for x := range v.floor {
			if v.floor[x][y] == "floor" {
				line.WriteString(".")
			} else {
				line.WriteString("#")
			}
		}
		s.Putstr(y, 0, line.String())
	}

	ids := make([]string, 0, len(v.entities))
	for id := range v.entities {
		if id != v.self {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if _, ok := v.entities[v.self]; ok {
		ids = append(ids, v.self)
	}
	for _, id := range ids {
		pos := v.entities[id]
		s.Putstr(pos[1], pos[0], v.glyph(id))
	}

	s.Refresh()
}
