// Package threshold converts pointer drag distance into a threshold radius
// around the seed intensity.
package threshold

import (
	"math"

	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultScaleBase maps one world unit of drag to one intensity unit.
const DefaultScaleBase = 1.0

// Mapper holds the scale factor and the intensity range of the active slice.
type Mapper struct {
	ScaleBase float64
	Min       float64
	Max       float64
}

// NewMapper builds a mapper for the intensity range of img.
func NewMapper(scaleBase float64, img *slice.Image) Mapper {
	lo, hi := img.Range()
	return Mapper{ScaleBase: scaleBase, Min: lo, Max: hi}
}

// Span returns the largest radius the mapper can produce.
func (m Mapper) Span() float64 {
	return math.Max(0, m.Max-m.Min)
}

// Value maps a drag distance to a radius clamped to [0, Max-Min].
func (m Mapper) Value(distance float64) float64 {
	v := distance * m.ScaleBase
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, m.Span())
}

// DragDistance is the length of the anchor->current displacement after
// projection onto the slice plane.
func DragDistance(anchor, current r3.Vec, frame slice.Frame) float64 {
	return r3.Norm(frame.ProjectOntoPlane(r3.Sub(current, anchor)))
}
