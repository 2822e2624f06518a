package game

import "math/rand"

// Room/corridor layout generation. Rooms are rejected when they overlap
// or touch a kept room; consecutive room centers are joined by L-shaped
// corridors.

const roomAttempts = 2000

type room struct {
	xMin, xMax, yMin, yMax int
}

func (r room) center() (int, int) {
	return (r.xMax + r.xMin) / 2, (r.yMax + r.yMin) / 2
}

// separated requires at least one wall cell between the two rooms.
func separated(a, b room) bool {
	return a.xMin > b.xMax+1 ||
		a.xMax < b.xMin-1 ||
		a.yMin > b.yMax+1 ||
		a.yMax < b.yMin-1
}

func (r room) contains(x, y int) bool {
	return x >= r.xMin && x <= r.xMax && y >= r.yMin && y <= r.yMax
}

// generateRooms places the fixed starter room and then samples random
// rectangles, keeping those with an interior of at least 3×3 that stay
// separated from every kept room.
func generateRooms(rng *rand.Rand, width, height int) []room {
	// Users and the ghost spawn inside this one.
	rooms := []room{{xMin: 5, xMax: 20, yMin: 5, yMax: 20}}

	for range roomAttempts {
		x1 := 1 + rng.Intn(width-2)
		x2 := 1 + rng.Intn(width-2)
		y1 := 1 + rng.Intn(height-2)
		y2 := 1 + rng.Intn(height-2)

		r := room{
			xMin: min(x1, x2), xMax: max(x1, x2),
			yMin: min(y1, y2), yMax: max(y1, y2),
		}
		if r.xMax-r.xMin <= 2 || r.yMax-r.yMin <= 2 {
			continue
		}

		fits := true
		for _, other := range rooms {
			if !separated(r, other) {
				fits = false
				break
			}
		}
		if fits {
			rooms = append(rooms, r)
		}
	}
	return rooms
}

// GenerateFloor produces a width×height floor layer of rooms connected
// by corridors. The same rng state always yields the same layout.
func GenerateFloor(rng *rand.Rand, width, height int) [][]Cell {
	rooms := generateRooms(rng, width, height)

	floor := make([][]Cell, width)
	for x := range width {
		floor[x] = make([]Cell, height)
		for y := range height {
			floor[x][y] = CellWall
			for _, r := range rooms {
				if r.contains(x, y) {
					floor[x][y] = CellFloor
					break
				}
			}
		}
	}

	// Join each room to the previous one with an L-shaped corridor
	// through both centers.
	for i := 1; i < len(rooms); i++ {
		cx, cy := rooms[i].center()
		px, py := rooms[i-1].center()

		for x := min(cx, px); x <= max(cx, px); x++ {
			floor[x][py] = CellFloor
		}
		for y := min(cy, py); y <= max(cy, py); y++ {
			floor[cx][y] = CellFloor
		}
	}
	return floor
}
