package slice

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptyGrid is returned for rasters without pixels.
	ErrEmptyGrid = errors.New("slice: empty grid")
	// ErrSizeMismatch is returned when the data length is not width*height.
	ErrSizeMismatch = errors.New("slice: data length does not match dimensions")
	// ErrBadSpacing is returned for non-positive or non-finite spacing.
	ErrBadSpacing = errors.New("slice: spacing must be positive and finite")
	// ErrNonFinite is returned when the raster holds NaN or Inf.
	ErrNonFinite = errors.New("slice: non-finite intensity")
)

// Image is a rectangular raster of scalar intensities placed in 3D by a
// frame. The raster is centred on the frame origin.
type Image struct {
	width    int
	height   int
	spacingX float64
	spacingY float64
	data     []float64
	frame    Frame
	minV     float64
	maxV     float64
	invalid  atomic.Bool
}

// New validates the raster and builds an Image. data is row-major and is
// retained, not copied.
func New(width, height int, spacingX, spacingY float64, data []float64, frame Frame) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyGrid, width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, len(data), width*height)
	}
	if !(spacingX > 0) || !(spacingY > 0) || math.IsInf(spacingX, 0) || math.IsInf(spacingY, 0) {
		return nil, fmt.Errorf("%w: %g x %g", ErrBadSpacing, spacingX, spacingY)
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	return &Image{
		width:    width,
		height:   height,
		spacingX: spacingX,
		spacingY: spacingY,
		data:     data,
		frame:    frame,
		minV:     minV,
		maxV:     maxV,
	}, nil
}

// Width returns the raster width in pixels.
func (im *Image) Width() int { return im.width }

// Height returns the raster height in pixels.
func (im *Image) Height() int { return im.height }

// Spacing returns the pixel size along the x and y axes in world units.
func (im *Image) Spacing() (float64, float64) { return im.spacingX, im.spacingY }

// Frame returns the frame the slice was cut with.
func (im *Image) Frame() Frame { return im.frame }

// Range returns the minimum and maximum intensity.
func (im *Image) Range() (float64, float64) { return im.minV, im.maxV }

// Bounds returns the pixel rectangle of the raster.
func (im *Image) Bounds() image.Rectangle { return image.Rect(0, 0, im.width, im.height) }

// InBounds reports whether (x, y) is a valid pixel index.
func (im *Image) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < im.width && y < im.height
}

// At returns the intensity at pixel (x, y). The caller checks bounds.
func (im *Image) At(x, y int) float64 { return im.data[y*im.width+x] }

// Invalidate marks the slice stale. Holders must stop using it.
func (im *Image) Invalidate() { im.invalid.Store(true) }

// Valid reports whether the slice is non-nil and has not been invalidated.
func (im *Image) Valid() bool { return im != nil && !im.invalid.Load() }

func (im *Image) centre() (float64, float64) {
	return float64(im.width-1) / 2, float64(im.height-1) / 2
}

// PixelToWorld maps a pixel-centre coordinate to a world position.
func (im *Image) PixelToWorld(x, y float64) r3.Vec {
	cx, cy := im.centre()
	p := r3.Add(im.frame.Origin, r3.Scale((x-cx)*im.spacingX, im.frame.XAxis))
	return r3.Add(p, r3.Scale((y-cy)*im.spacingY, im.frame.YAxis))
}

// WorldToPixel projects a world position onto the slice plane and returns its
// pixel-centre coordinate.
func (im *Image) WorldToPixel(p r3.Vec) (float64, float64) {
	cx, cy := im.centre()
	v := r3.Sub(p, im.frame.Origin)
	return r3.Dot(v, im.frame.XAxis)/im.spacingX + cx, r3.Dot(v, im.frame.YAxis)/im.spacingY + cy
}

// PixelAt returns the pixel containing the projection of p.
func (im *Image) PixelAt(p r3.Vec) image.Point {
	x, y := im.WorldToPixel(p)
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// Window returns the pixel rectangle covered by a square of side size world
// units centred on the slice centre, clipped to the raster. size <= 0 selects
// the whole raster.
func (im *Image) Window(size float64) image.Rectangle {
	if size <= 0 {
		return im.Bounds()
	}
	cx, cy := im.centre()
	hx := size / (2 * im.spacingX)
	hy := size / (2 * im.spacingY)
	x0 := int(math.Ceil(cx - hx))
	y0 := int(math.Ceil(cy - hy))
	x1 := int(math.Floor(cx+hx)) + 1
	y1 := int(math.Floor(cy+hy)) + 1
	return image.Rect(x0, y0, x1, y1).Intersect(im.Bounds())
}
