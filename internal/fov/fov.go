// Package fov computes grid field of vision with a permissive,
// quadrant-based shadow-casting algorithm.
//
// Inspired by
// http://www.roguebasin.com/index.php?title=Precise_Permissive_Field_of_View
package fov

import "math"

// Point is an absolute grid coordinate.
type Point struct {
	X, Y int
}

var quadrants = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

// Unbounded marks a view slope with no constraint. Slopes are measured as
// dy/dx against the lower-left corner of a cell; a vertical bound is
// +Inf, an absent bound is the negative sentinel.
const Unbounded = -1

// View is one active vision cone in a quadrant, bounded by a steep and a
// shallow slope.
type View struct {
	Steep, Shallow float64
}

// Contains reports whether the relative cell (x, y) lies strictly between
// the view's slope bounds.
func (v View) Contains(x, y int) bool {
	fx, fy := float64(x), float64(y)
	return (v.Steep*fx > fy || v.Steep < 0) &&
		(v.Shallow*fx < fy || v.Shallow < 0)
}

// Split clips the view around a blocking cell at relative (x, y),
// producing up to two narrower views. A branch that collapses to zero
// width is discarded.
func (v View) Split(x, y int) []View {
	newSlope := math.Inf(1)
	if x > 0 {
		newSlope = float64(y) / float64(x)
	}

	var out []View
	if v.Shallow*float64(x+1) < float64(y-1) && newSlope > 0 {
		out = append(out, View{Steep: newSlope, Shallow: v.Shallow})
	}
	if (v.Steep < 0 || v.Steep*float64(x-1) > float64(y+1)) && !math.IsInf(newSlope, 1) {
		out = append(out, View{Steep: v.Steep, Shallow: newSlope})
	}
	return out
}

// closestToFarthest visits every relative offset (dx, dy) with dx,dy >= 0
// and dx²+dy² <= radius², nearest first: ascending dx+dy, then ascending
// dy within equal rank. The origin itself is skipped.
func closestToFarthest(radius int, visit func(dx, dy int)) {
	for rank := 0; rank <= radius*2; rank++ {
		for dy := 0; dy <= rank; dy++ {
			dx := rank - dy
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			if dx == 0 && dy == 0 {
				continue
			}
			visit(dx, dy)
		}
	}
}

// Compute returns the set of cells visible from (centerX, centerY) within
// the given radius. blocks reports whether the cell at absolute
// coordinates obstructs sight. The origin is never part of the result.
// The computation is pure: blocks is the only input besides the origin
// and radius, and the same inputs always produce the same set.
func Compute(centerX, centerY, radius int, blocks func(x, y int) bool) map[Point]bool {
	visible := make(map[Point]bool)
	if radius <= 0 {
		return visible
	}

	for _, quadrant := range quadrants {
		newViews := []View{{Steep: Unbounded, Shallow: Unbounded}}

		closestToFarthest(radius, func(dx, dy int) {
			x := centerX + quadrant[0]*dx
			y := centerY + quadrant[1]*dy

			views := newViews
			newViews = nil

			for _, view := range views {
				if view.Contains(dx, dy) {
					visible[Point{x, y}] = true
					if blocks(x, y) {
						newViews = append(newViews, view.Split(dx, dy)...)
						continue
					}
				}
				newViews = append(newViews, view)
			}
		})
	}
	return visible
}
