package game

import (
	"fmt"
	"math/rand"

	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
)

// Sprite is a positioned game entity occupying exactly one map cell.
// Position mutation is reserved to the owning map.
type Sprite interface {
	ID() string
	Position() (x, y int)
	setPosition(x, y int)
	// Step runs the sprite's per-tick behavior against its map.
	Step(m *Map)
}

type spriteBase struct {
	id   string
	x, y int
}

func (s *spriteBase) ID() string           { return s.id }
func (s *spriteBase) Position() (int, int) { return s.x, s.y }
func (s *spriteBase) setPosition(x, y int) { s.x, s.y = x, y }
func (s *spriteBase) Step(m *Map)          {}

// spriteID builds the canonical "kind:name" identity.
func spriteID(kind, name string) string {
	return fmt.Sprintf("%s:%s", kind, name)
}

// MovingSprite attempts one unit move in its current direction every
// tick. With direction Stop it stays put.
type MovingSprite struct {
	spriteBase
	Direction protocol.Direction
}

func (s *MovingSprite) Step(m *Map) {
	dx, dy, moves := delta(s.Direction)
	if !moves {
		return
	}
	// A blocked move is a silent no-op; the next tick tries again.
	m.MoveSprite(s, dx, dy)
}

// delta maps a direction to a unit step. The y axis grows southward.
func delta(d protocol.Direction) (dx, dy int, moves bool) {
	switch d {
	case protocol.North:
		return 0, -1, true
	case protocol.East:
		return 1, 0, true
	case protocol.South:
		return 0, 1, true
	case protocol.West:
		return -1, 0, true
	default:
		return 0, 0, false
	}
}

// UserSprite represents a connected user.
type UserSprite struct {
	MovingSprite
}

// NewUserSprite creates a user sprite at (x, y) with direction Stop.
func NewUserSprite(name string, x, y int) *UserSprite {
	s := &UserSprite{}
	s.id = spriteID("User", name)
	s.x, s.y = x, y
	s.Direction = protocol.Stop
	return s
}

// GhostSprite is an autonomous roamer: every tick it re-randomizes its
// direction before moving.
type GhostSprite struct {
	MovingSprite
	rng *rand.Rand
}

// NewGhostSprite creates a ghost at (x, y) driven by rng.
func NewGhostSprite(name string, x, y int, rng *rand.Rand) *GhostSprite {
	s := &GhostSprite{rng: rng}
	s.id = spriteID("Ghost", name)
	s.x, s.y = x, y
	s.Direction = protocol.Stop
	return s
}

var ghostMoves = []protocol.Direction{
	protocol.North, protocol.East, protocol.South, protocol.West, protocol.Stop,
}

func (g *GhostSprite) Step(m *Map) {
	g.Direction = ghostMoves[g.rng.Intn(len(ghostMoves))]
	g.MovingSprite.Step(m)
}
