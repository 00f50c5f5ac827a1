package utils

import "math"

// SimplifyPolygon reduces the number of points in a closed polygon using the
// Douglas-Peucker algorithm with the given tolerance epsilon.
// The ring is split at the vertex farthest from the first one so both halves
// keep a fixed anchor, which keeps the result closed and ordered.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	far := 0
	maxD := -1.0
	for i, p := range pts {
		d := math.Hypot(p.X-pts[0].X, p.Y-pts[0].Y)
		if d > maxD {
			maxD = d
			far = i
		}
	}
	// Close the ring by duplicating the first point at the end
	ring := append(append([]Point(nil), pts...), pts[0])
	keep := make([]bool, len(ring))
	keep[0] = true
	keep[far] = true
	keep[len(ring)-1] = true
	dpSimplify(ring, 0, far, epsilon, keep)
	dpSimplify(ring, far, len(ring)-1, epsilon, keep)

	out := make([]Point, 0, len(pts))
	for i := 0; i < len(ring)-1; i++ {
		if keep[i] {
			out = append(out, ring[i])
		}
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	den := math.Hypot(vx, vy)
	return num / den
}

// CleanPolygon treats pts as a closed ring and drops repeated vertices and
// vertices collinear with their neighbours. A vertex where the outline doubles
// back on itself (a one-pixel spike) is collinear too, so spikes collapse as
// well. The result may be shorter than 3 points.
func CleanPolygon(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		out = appendClean(out, p)
	}
	// Resolve the seam between the last and the first vertex
	for len(out) >= 3 {
		n := len(out)
		switch {
		case samePoint(out[n-1], out[0]):
			out = out[:n-1]
		case cross(out[n-2], out[n-1], out[0]) == 0:
			out = out[:n-1]
		case cross(out[n-1], out[0], out[1]) == 0:
			out = out[1:]
		default:
			return out
		}
	}
	return dedupeRing(out)
}

// appendClean appends p to the open chain out, first popping every trailing
// vertex that p makes redundant.
func appendClean(out []Point, p Point) []Point {
	for len(out) > 0 {
		n := len(out)
		if samePoint(out[n-1], p) {
			return out
		}
		if n >= 2 && cross(out[n-2], out[n-1], p) == 0 {
			out = out[:n-1]
			continue
		}
		break
	}
	return append(out, p)
}

func dedupeRing(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && samePoint(out[len(out)-1], p) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && samePoint(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func samePoint(a, b Point) bool { return a.X == b.X && a.Y == b.Y }

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// HasConsecutiveDuplicates reports whether any two neighbouring vertices of
// the closed ring pts coincide, including the last/first pair.
func HasConsecutiveDuplicates(pts []Point) bool {
	n := len(pts)
	if n < 2 {
		return false
	}
	for i := range n {
		if samePoint(pts[i], pts[(i+1)%n]) {
			return true
		}
	}
	return false
}

// PolygonArea returns the signed shoelace area of the closed ring pts.
// Positive for clockwise rings in image coordinates (y grows downwards).
func PolygonArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := range n {
		a := pts[i]
		b := pts[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}
