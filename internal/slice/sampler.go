package slice

import (
	"errors"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrNoSource is returned when a sampler has nothing to cut from.
var ErrNoSource = errors.New("slice: sampler has no source image")

// Sampler produces the slice perpendicular to the path at a path point.
type Sampler interface {
	Sample(p PathPoint, resliceSize float64) (*Image, error)
}

// SamplerOptions control how PlanarSampler builds slices.
type SamplerOptions struct {
	SpacingX    float64
	SpacingY    float64
	SmoothSigma float64
	Invert      bool
}

// PlanarSampler serves slices cut from a single pre-resliced plane image.
// Each call places the plane at the requested path point and invalidates the
// slice it handed out before.
type PlanarSampler struct {
	source image.Image
	opts   SamplerOptions

	mu   sync.Mutex
	last *Image
}

// NewPlanarSampler creates a sampler over src.
func NewPlanarSampler(src image.Image, opts SamplerOptions) *PlanarSampler {
	if opts.SpacingX <= 0 {
		opts.SpacingX = 1
	}
	if opts.SpacingY <= 0 {
		opts.SpacingY = opts.SpacingX
	}
	return &PlanarSampler{source: src, opts: opts}
}

// Sample cuts the slice at p. A positive resliceSize crops the plane to a
// square of that many world units around its centre.
func (s *PlanarSampler) Sample(p PathPoint, resliceSize float64) (*Image, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	var img image.Image = s.source
	if resliceSize > 0 {
		b := img.Bounds()
		w := min(b.Dx(), int(math.Round(resliceSize/s.opts.SpacingX)))
		h := min(b.Dy(), int(math.Round(resliceSize/s.opts.SpacingY)))
		if w > 0 && h > 0 {
			img = imaging.CropCenter(img, w, h)
		}
	}
	if s.opts.SmoothSigma > 0 {
		img = imaging.Blur(img, s.opts.SmoothSigma)
	}

	out, err := FromImage(img, s.opts.SpacingX, s.opts.SpacingY, p.Frame())
	if err != nil {
		return nil, err
	}
	if s.opts.Invert {
		out.invert()
	}

	s.mu.Lock()
	if s.last != nil {
		s.last.Invalidate()
	}
	s.last = out
	s.mu.Unlock()

	return out, nil
}

func (im *Image) invert() {
	for i, v := range im.data {
		im.data[i] = im.maxV + im.minV - v
	}
}
