package boundary

import (
	"image"

	"github.com/MeKo-Tech/lumentrace/internal/utils"
)

func dirIndex(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 0
}

// mooreTrace follows the outer boundary of the component labelled label,
// starting at its first pixel in raster order. The walk stops when it would
// leave the start pixel towards the same neighbour as on the first step, so
// single-pixel-wide parts are walked in both directions. Holes are never
// visited. Vertices are pixel centres.
func mooreTrace(labels []int, w, h, label int, start image.Point) []utils.Point {
	member := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	pts := []utils.Point{{X: float64(start.X), Y: float64(start.Y)}}

	// west of the raster-first pixel is never part of the component
	c := start
	b := image.Pt(start.X-1, start.Y)
	var first image.Point
	moved := false

	// each boundary pixel is entered at most from 4 sides
	limit := 4*w*h + 8
	for range limit {
		next, back, ok := step(member, c, b)
		if !ok {
			// isolated pixel
			return pts
		}
		if !moved {
			first = next
			moved = true
		} else if c == start && next == first {
			break
		}
		pts = append(pts, utils.Point{X: float64(next.X), Y: float64(next.Y)})
		c, b = next, back
	}

	// the walk ends back on the start pixel
	if n := len(pts); n > 1 && pts[n-1] == pts[0] {
		pts = pts[:n-1]
	}
	return pts
}

// step scans the Moore neighbourhood of c clockwise, starting just after the
// backtrack b, and returns the first member pixel together with the
// background pixel examined right before it.
func step(member func(x, y int) bool, c, b image.Point) (image.Point, image.Point, bool) {
	from := dirIndex(b.X-c.X, b.Y-c.Y)
	prev := b
	for k := 1; k <= 8; k++ {
		i := (from + k) % 8
		t := image.Pt(c.X+ndx[i], c.Y+ndy[i])
		if member(t.X, t.Y) {
			return t, prev, true
		}
		prev = t
	}
	return image.Point{}, b, false
}
