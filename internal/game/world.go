package game

import (
	"fmt"
	"sort"

	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
)

// Logger is the narrow logging surface the world needs; satisfied by
// zap's SugaredLogger and by test mocks.
type Logger interface {
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

// session is one live user: the sprite plus where it lives. Created on
// the first validated request from an unseen user id (lazy login),
// destroyed on logout. Nothing is persisted.
type session struct {
	sprite *UserSprite
	coord  Coord
	m      *Map
}

// World owns every user session and routes validated requests to game
// logic. It is driven exclusively by the server loop goroutine, so no
// locking happens here.
type World struct {
	store    Store
	users    map[string]*session
	logger   Logger
	origin   Coord // where fresh users spawn
}

// NewWorld builds a world backed by the given map store.
func NewWorld(store Store, logger Logger) *World {
	return &World{
		store:  store,
		users:  make(map[string]*session),
		logger: logger,
	}
}

// Dispatch handles one already-validated request and returns the data
// for its success response. InvalidError and IllegalError results map to
// the corresponding response statuses upstream.
func (w *World) Dispatch(user, action string, data map[string]any) (map[string]any, error) {
	switch action {
	case "echo":
		out := make(map[string]any, len(data))
		for k, v := range data {
			out[k] = v
		}
		return out, nil

	case "move":
		sess, err := w.ensure(user)
		if err != nil {
			return nil, err
		}
		dir, err := protocol.ParseDirection(protocol.StringArg(data, "direction", ""))
		if err != nil {
			return nil, err
		}
		// The direction takes effect on the next tick; the position
		// broadcast happens only if the move actually succeeds.
		sess.sprite.Direction = dir
		return nil, nil

	case "logout":
		if sess, ok := w.users[user]; ok {
			sess.m.RemoveSprite(sess.sprite.ID())
			delete(w.users, user)
			w.logger.Infof("user %s logged out", user)
		}
		return nil, nil

	case "get_map":
		sess, err := w.ensure(user)
		if err != nil {
			return nil, err
		}
		return sess.m.EncodeFloor(), nil

	default:
		// The action registry rejects unknown actions before dispatch;
		// reaching this means a registered action has no handler.
		return nil, fmt.Errorf("action %q has no handler", action)
	}
}

// ensure implements lazy login: the first request from an unseen user id
// creates its sprite on the origin map.
func (w *World) ensure(user string) (*session, error) {
	if sess, ok := w.users[user]; ok {
		return sess, nil
	}

	m, err := w.store.Get(w.origin)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", w.origin, err)
	}

	// Spawn inside the starter room, or wherever is free.
	x, y, ok := m.FindFree(10, 10)
	if !ok {
		return nil, protocol.Illegalf("map %s has no free cell", w.origin)
	}
	sprite := NewUserSprite(user, x, y)
	if !m.AddSprite(sprite) {
		return nil, protocol.Illegalf("spawn cell occupied on map %s", w.origin)
	}

	sess := &session{sprite: sprite, coord: w.origin, m: m}
	w.users[user] = sess
	w.logger.Infof("user %s logged in at (%d,%d) on map %s", user, x, y, w.origin)
	return sess, nil
}

// User returns the live sprite for a user id.
func (w *World) User(user string) (*UserSprite, bool) {
	sess, ok := w.users[user]
	if !ok {
		return nil, false
	}
	return sess.sprite, true
}

// ActiveMaps returns each map referenced by at least one live user, in
// coordinate order. Maps without users are frozen: no CPU is spent and
// no time passes for their ghosts.
func (w *World) ActiveMaps() []*Map {
	byCoord := make(map[Coord]*Map)
	for _, sess := range w.users {
		byCoord[sess.coord] = sess.m
	}

	coords := make([]Coord, 0, len(byCoord))
	for c := range byCoord {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	maps := make([]*Map, 0, len(coords))
	for _, c := range coords {
		maps = append(maps, byCoord[c])
	}
	return maps
}

// Step advances every active map by one tick.
func (w *World) Step() {
	for _, m := range w.ActiveMaps() {
		m.Step()
	}
}

// UserCount reports the number of live sessions.
func (w *World) UserCount() int {
	return len(w.users)
}
