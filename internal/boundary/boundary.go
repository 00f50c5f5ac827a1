// Package boundary extracts the outer outline of a pixel mask as a closed
// polygon and maps it into world space.
package boundary

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/lumentrace/internal/mempool"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMinPixels is the smallest region that produces a contour.
const DefaultMinPixels = 3

var (
	// ErrDegenerate is returned when the mask has no usable outline.
	ErrDegenerate = errors.New("boundary: degenerate region")
	// ErrMaskSize is returned when the mask does not cover w*h pixels.
	ErrMaskSize = errors.New("boundary: mask size does not match dimensions")
)

// Tracer traces the largest 8-connected component of a mask.
type Tracer struct {
	// MinPixels below which a component is degenerate. Zero means DefaultMinPixels.
	MinPixels int
	// SimplifyEpsilon enables Douglas-Peucker simplification in pixels.
	SimplifyEpsilon float64
}

// Trace returns the outline of the largest component as a closed ring of
// pixel-centre coordinates without collinear or repeated vertices.
func (t Tracer) Trace(mask []bool, w, h int) ([]utils.Point, error) {
	if w <= 0 || h <= 0 || len(mask) < w*h {
		return nil, fmt.Errorf("%w: %d for %dx%d", ErrMaskSize, len(mask), w, h)
	}

	minPixels := t.MinPixels
	if minPixels <= 0 {
		minPixels = DefaultMinPixels
	}

	comps, labels := labelComponents(mask[:w*h], w, h)
	defer mempool.PutInt(labels)

	best, ok := largest(comps)
	if !ok {
		return nil, fmt.Errorf("%w: empty mask", ErrDegenerate)
	}
	if best.count < minPixels {
		return nil, fmt.Errorf("%w: %d pixels", ErrDegenerate, best.count)
	}

	pts := utils.CleanPolygon(mooreTrace(labels, w, h, best.label, best.start))
	if t.SimplifyEpsilon > 0 {
		pts = utils.CleanPolygon(utils.SimplifyPolygon(pts, t.SimplifyEpsilon))
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrDegenerate, len(pts))
	}

	return pts, nil
}

// ToWorld maps pixel-centre vertices onto the slice plane.
func ToWorld(img *slice.Image, pts []utils.Point) []r3.Vec {
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = img.PixelToWorld(p.X, p.Y)
	}
	return out
}
