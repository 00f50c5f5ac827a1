package slice

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PathPoint is a position on a vessel path together with the orientation used
// to cut a slice there.
type PathPoint struct {
	ID       int     `mapstructure:"id" yaml:"id" json:"id"`
	Position r3.Vec  `mapstructure:"position" yaml:"position" json:"position"`
	Tangent  r3.Vec  `mapstructure:"tangent" yaml:"tangent" json:"tangent"`
	Rotation r3.Vec  `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
	Angle    float64 `mapstructure:"angle" yaml:"angle" json:"angle"` // radians about Tangent
}

// Frame is the orthonormal slice frame: Origin is the slice centre, Normal the
// path tangent, XAxis/YAxis the in-plane pixel axes.
type Frame struct {
	Origin r3.Vec `json:"origin"`
	Normal r3.Vec `json:"normal"`
	XAxis  r3.Vec `json:"x_axis"`
	YAxis  r3.Vec `json:"y_axis"`
}

// DefaultPathPoint returns an axial path point at the origin.
func DefaultPathPoint() PathPoint {
	return PathPoint{
		Tangent:  r3.Vec{Z: 1},
		Rotation: r3.Vec{X: 1},
	}
}

// Frame derives the slice frame. A zero or parallel rotation axis falls back
// to the world axis least aligned with the tangent.
func (p PathPoint) Frame() Frame {
	n := p.Tangent
	if r3.Norm(n) == 0 {
		n = r3.Vec{Z: 1}
	}
	n = r3.Unit(n)

	ref := orthogonalize(p.Rotation, n)
	if r3.Norm(ref) < 1e-12 {
		ref = orthogonalize(leastAligned(n), n)
	}
	ref = r3.Unit(ref)

	// ref is perpendicular to n, so Rodrigues' formula reduces to two terms
	sin, cos := math.Sincos(p.Angle)
	x := r3.Add(r3.Scale(cos, ref), r3.Scale(sin, r3.Cross(n, ref)))
	x = r3.Unit(x)
	y := r3.Unit(r3.Cross(n, x))

	return Frame{Origin: p.Position, Normal: n, XAxis: x, YAxis: y}
}

func orthogonalize(v, n r3.Vec) r3.Vec {
	return r3.Sub(v, r3.Scale(r3.Dot(v, n), n))
}

func leastAligned(n r3.Vec) r3.Vec {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case ax <= ay && ax <= az:
		return r3.Vec{X: 1}
	case ay <= az:
		return r3.Vec{Y: 1}
	default:
		return r3.Vec{Z: 1}
	}
}

// Matches reports whether o describes the same plane placement as f: origins
// within tol world units and every axis within tol.
func (f Frame) Matches(o Frame, tol float64) bool {
	if tol < 0 {
		tol = 0
	}
	return r3.Norm(r3.Sub(f.Origin, o.Origin)) <= tol &&
		r3.Norm(r3.Sub(f.Normal, o.Normal)) <= tol &&
		r3.Norm(r3.Sub(f.XAxis, o.XAxis)) <= tol &&
		r3.Norm(r3.Sub(f.YAxis, o.YAxis)) <= tol
}

// ProjectOntoPlane removes the component of v along the frame normal.
func (f Frame) ProjectOntoPlane(v r3.Vec) r3.Vec {
	return orthogonalize(v, f.Normal)
}

// DistanceToPlane returns the signed distance of p from the slice plane.
func (f Frame) DistanceToPlane(p r3.Vec) float64 {
	return r3.Dot(r3.Sub(p, f.Origin), f.Normal)
}
