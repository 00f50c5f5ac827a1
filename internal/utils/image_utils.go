package utils

import (
	"image"
	"image/color"
	"math"
)

// Point represents a 2D coordinate in float space. For slice rasters it is a
// pixel-centre coordinate: (0,0) is the centre of the top-left pixel.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScalePoints returns a copy of pts scaled by sx, sy.
func ScalePoints(pts []Point, sx, sy float64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst *image.NRGBA, pts []Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	ip := make([]image.Point, len(pts))
	for i, p := range pts {
		ip[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	for i := range ip {
		drawLine(dst, ip[i], ip[(i+1)%len(ip)], col, thickness)
	}
}

// DrawCross draws a small plus-shaped marker centred on p.
func DrawCross(dst *image.NRGBA, p Point, size int, col color.Color) {
	c := image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	drawLine(dst, image.Pt(c.X-size, c.Y), image.Pt(c.X+size, c.Y), col, 1)
	drawLine(dst, image.Pt(c.X, c.Y-size), image.Pt(c.X, c.Y+size), col, 1)
}

// drawLine draws a line between two points using a simple Bresenham variant.
func drawLine(dst *image.NRGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.NRGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
