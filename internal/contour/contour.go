// Package contour holds the contour produced by a drawing session and the
// per-time-step group it is committed into.
package contour

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// MethodThreshold tags contours produced by threshold growing.
const MethodThreshold = "Threshold"

// ErrTooFewPoints is returned when building a contour with fewer than 3 points.
var ErrTooFewPoints = errors.New("contour: at least 3 points required")

// Contour is a closed polygon in world space. The first point implicitly
// follows the last.
type Contour struct {
	Method   string
	TimeStep int
	Points   []r3.Vec
}

// New copies pts into a contour.
func New(method string, timeStep int, pts []r3.Vec) (*Contour, error) {
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(pts))
	}
	return &Contour{
		Method:   method,
		TimeStep: timeStep,
		Points:   append([]r3.Vec(nil), pts...),
	}, nil
}

// Clone returns a deep copy. A nil contour clones to nil.
func (c *Contour) Clone() *Contour {
	if c == nil {
		return nil
	}
	out := *c
	out.Points = append([]r3.Vec(nil), c.Points...)
	return &out
}

// Equal reports whether both contours carry the same tag, time step and points.
func (c *Contour) Equal(o *Contour) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Method != o.Method || c.TimeStep != o.TimeStep || len(c.Points) != len(o.Points) {
		return false
	}
	for i := range c.Points {
		if c.Points[i] != o.Points[i] {
			return false
		}
	}
	return true
}

// Len returns the number of vertices.
func (c *Contour) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// Centroid returns the vertex mean.
func (c *Contour) Centroid() r3.Vec {
	var sum r3.Vec
	if c.Len() == 0 {
		return sum
	}
	for _, p := range c.Points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(c.Points)), sum)
}

// Perimeter returns the closed-ring length.
func (c *Contour) Perimeter() float64 {
	n := c.Len()
	total := 0.0
	for i := range n {
		total += r3.Norm(r3.Sub(c.Points[(i+1)%n], c.Points[i]))
	}
	return total
}

// Area returns the enclosed area of a planar ring.
func (c *Contour) Area() float64 {
	n := c.Len()
	if n < 3 {
		return 0
	}
	var sum r3.Vec
	for i := range n {
		sum = r3.Add(sum, r3.Cross(c.Points[i], c.Points[(i+1)%n]))
	}
	return r3.Norm(sum) / 2
}
