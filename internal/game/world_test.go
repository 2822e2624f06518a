package game

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
)

// fixedStore serves one shared open map for every coordinate.
type fixedStore struct {
	m *Map
}

func (s *fixedStore) Get(c Coord) (*Map, error) {
	return s.m, nil
}

func newTestWorld() (*World, *Map, *mockBroadcaster) {
	b := &mockBroadcaster{}
	m := openMap(b, 30, 30)
	w := NewWorld(&fixedStore{m: m}, &mockLogger{})
	return w, m, b
}

func TestDispatchMoveCreatesSessionLazily(t *testing.T) {
	w, m, _ := newTestWorld()

	if _, err := w.Dispatch("alice", "move", map[string]any{"direction": "south"}); err != nil {
		t.Fatalf("Dispatch(move): %v", err)
	}

	sprite, ok := w.User("alice")
	if !ok {
		t.Fatal("first request should create the user session")
	}
	if sprite.Direction != protocol.South {
		t.Errorf("direction = %q, want south", sprite.Direction)
	}
	if _, found := m.Sprite("User:alice"); !found {
		t.Error("user sprite not registered on the map")
	}
}

func TestDispatchMoveDoesNotBroadcastImmediately(t *testing.T) {
	w, _, b := newTestWorld()

	if _, err := w.Dispatch("alice", "move", map[string]any{"direction": "south"}); err != nil {
		t.Fatalf("Dispatch(move): %v", err)
	}
	if len(b.updates) != 0 {
		t.Errorf("move broadcast %d updates before the tick, want 0", len(b.updates))
	}

	w.Step()
	if len(b.updates) != 1 {
		t.Fatalf("got %d updates after the tick, want 1", len(b.updates))
	}
	if b.updates[0].action != "position" {
		t.Errorf("update action = %q, want position", b.updates[0].action)
	}
	if b.updates[0].data["entity"] != "User:alice" {
		t.Errorf("update entity = %v, want User:alice", b.updates[0].data["entity"])
	}
}

func TestDispatchLogoutDestroysSession(t *testing.T) {
	w, m, _ := newTestWorld()
	_, _ = w.Dispatch("alice", "move", map[string]any{"direction": "stop"})

	if _, err := w.Dispatch("alice", "logout", nil); err != nil {
		t.Fatalf("Dispatch(logout): %v", err)
	}
	if _, ok := w.User("alice"); ok {
		t.Error("session should be destroyed on logout")
	}
	if _, ok := m.Sprite("User:alice"); ok {
		t.Error("sprite should be removed from the map on logout")
	}
	if w.UserCount() != 0 {
		t.Errorf("UserCount = %d, want 0", w.UserCount())
	}
}

func TestDispatchLogoutUnknownUserIsNoOp(t *testing.T) {
	w, _, _ := newTestWorld()
	if _, err := w.Dispatch("ghost-user", "logout", nil); err != nil {
		t.Errorf("logout for unseen user should succeed, got %v", err)
	}
}

func TestDispatchLogoutAllowsRelogin(t *testing.T) {
	w, _, _ := newTestWorld()
	_, _ = w.Dispatch("alice", "move", map[string]any{"direction": "stop"})
	_, _ = w.Dispatch("alice", "logout", nil)

	if _, err := w.Dispatch("alice", "get_map", nil); err != nil {
		t.Fatalf("re-login after logout failed: %v", err)
	}
	if _, ok := w.User("alice"); !ok {
		t.Error("implicit re-login should recreate the session")
	}
}

func TestDispatchGetMap(t *testing.T) {
	w, m, _ := newTestWorld()

	data, err := w.Dispatch("alice", "get_map", nil)
	if err != nil {
		t.Fatalf("Dispatch(get_map): %v", err)
	}
	floor, ok := data["floor_layer"].([][]Cell)
	if !ok {
		t.Fatalf("floor_layer missing or wrong type: %T", data["floor_layer"])
	}
	if len(floor) != m.Width {
		t.Errorf("floor has %d columns, want %d", len(floor), m.Width)
	}
}

func TestDispatchEchoReturnsData(t *testing.T) {
	w, _, _ := newTestWorld()

	data, err := w.Dispatch("alice", "echo", map[string]any{"foo": "hello"})
	if err != nil {
		t.Fatalf("Dispatch(echo): %v", err)
	}
	if data["foo"] != "hello" {
		t.Errorf("echo data = %v, want foo=hello", data)
	}
	// echo is stateless: it must not create a session
	if _, ok := w.User("alice"); ok {
		t.Error("echo should not log the user in")
	}
}

func TestActiveMapsOnlyWithUsers(t *testing.T) {
	w, _, _ := newTestWorld()
	if got := len(w.ActiveMaps()); got != 0 {
		t.Errorf("ActiveMaps = %d with no users, want 0", got)
	}

	_, _ = w.Dispatch("alice", "move", map[string]any{"direction": "stop"})
	_, _ = w.Dispatch("bob", "move", map[string]any{"direction": "stop"})
	if got := len(w.ActiveMaps()); got != 1 {
		t.Errorf("ActiveMaps = %d for two users on one map, want 1", got)
	}

	_, _ = w.Dispatch("alice", "logout", nil)
	_, _ = w.Dispatch("bob", "logout", nil)
	if got := len(w.ActiveMaps()); got != 0 {
		t.Errorf("ActiveMaps = %d after everyone left, want 0", got)
	}
}

func TestFrozenMapGhostDoesNotMove(t *testing.T) {
	b := &mockBroadcaster{}
	m := openMap(b, 20, 20)
	g := NewGhostSprite("example", 5, 5, rand.New(rand.NewSource(7)))
	m.AddSprite(g)
	w := NewWorld(&fixedStore{m: m}, &mockLogger{})

	// No users: the map is inactive, stepping the world is a no-op.
	for range 50 {
		w.Step()
	}
	if x, y := g.Position(); x != 5 || y != 5 {
		t.Errorf("ghost on a frozen map moved to (%d,%d)", x, y)
	}
}

func TestGenerateFloorIsDeterministic(t *testing.T) {
	a := GenerateFloor(rand.New(rand.NewSource(42)), 60, 40)
	b := GenerateFloor(rand.New(rand.NewSource(42)), 60, 40)
	for x := range a {
		for y := range a[x] {
			if a[x][y] != b[x][y] {
				t.Fatalf("layouts differ at (%d,%d)", x, y)
			}
		}
	}
}

func TestGenerateFloorCarvesStarterRoom(t *testing.T) {
	floor := GenerateFloor(rand.New(rand.NewSource(1)), 60, 40)
	for x := 5; x <= 20; x++ {
		for y := 5; y <= 20; y++ {
			if floor[x][y] != CellFloor {
				t.Fatalf("starter room cell (%d,%d) is %q, want floor", x, y, floor[x][y])
			}
		}
	}
	// The border must stay solid.
	for x := range 60 {
		if floor[x][0] != CellWall || floor[x][39] != CellWall {
			t.Fatalf("border breached at column %d", x)
		}
	}
	for y := range 40 {
		if floor[0][y] != CellWall || floor[59][y] != CellWall {
			t.Fatalf("border breached at row %d", y)
		}
	}
}

func TestManagerCachesMaps(t *testing.T) {
	mgr := NewManager(nil, 30, 30, "", rand.New(rand.NewSource(3)))

	first, err := mgr.Get(Coord{0, 0, 0})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := mgr.Get(Coord{0, 0, 0})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("same coordinate should return the cached map")
	}

	other, err := mgr.Get(Coord{1, 0, 0})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if other == first {
		t.Error("different coordinates should return different maps")
	}
}

func TestManagerSeedsGhost(t *testing.T) {
	mgr := NewManager(nil, 30, 30, "", rand.New(rand.NewSource(3)))
	m, err := mgr.Get(Coord{0, 0, 0})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := m.Sprite("Ghost:example"); !ok {
		t.Error("fresh map should carry its resident ghost")
	}
}

func TestManagerPersistsLayout(t *testing.T) {
	dir := t.TempDir()

	mgr := NewManager(nil, 30, 30, dir, rand.New(rand.NewSource(9)))
	first, err := mgr.Get(Coord{2, 3, 4})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// A second manager with a different seed must load the same layout
	// from disk instead of regenerating.
	reloaded := NewManager(nil, 30, 30, dir, rand.New(rand.NewSource(1234)))
	second, err := reloaded.Get(Coord{2, 3, 4})
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	for x := range 30 {
		for y := range 30 {
			if first.FloorAt(x, y) != second.FloorAt(x, y) {
				t.Fatalf("persisted layout differs at (%d,%d)", x, y)
			}
		}
	}

	if _, err := filepath.Glob(filepath.Join(dir, "*.map")); err != nil {
		t.Fatalf("glob: %v", err)
	}
}

func TestDispatchInvalidDirectionSurfacesError(t *testing.T) {
	w, _, _ := newTestWorld()
	_, err := w.Dispatch("alice", "move", map[string]any{"direction": "sideways"})
	var invalid *protocol.InvalidError
	if !errors.As(err, &invalid) {
		t.Errorf("got %v, want InvalidError", err)
	}
}
