// Package region grows the connected pixel set around a seed whose
// intensities stay within a radius of the seed intensity.
package region

import (
	"container/list"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/lumentrace/internal/mempool"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
)

var (
	// ErrNilSlice is returned when growing on a missing or invalidated slice.
	ErrNilSlice = errors.New("region: slice is nil or invalid")
	// ErrSeedOutOfBounds is returned when the seed lies outside the growth window.
	ErrSeedOutOfBounds = errors.New("region: seed outside slice bounds")
)

// Region is the grown pixel set as a mask over the full slice grid.
type Region struct {
	Mask   []bool
	Width  int
	Height int
	Count  int
	Bounds image.Rectangle // tight bounds, Max exclusive
	Seed   image.Point
	Values []float64 // intensities of member pixels in visit order
}

// Contains reports whether pixel (x, y) belongs to the region.
func (r *Region) Contains(x, y int) bool {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return false
	}
	return r.Mask[y*r.Width+x]
}

// Release hands the mask back to the buffer pool. The region must not be used
// afterwards.
func (r *Region) Release() {
	if r == nil {
		return
	}
	mempool.PutBool(r.Mask)
	r.Mask = nil
}

// Grower floods 4-connected neighbours. Window, when non-empty, bounds the
// traversal to a sub-rectangle of the slice.
type Grower struct {
	Window image.Rectangle
}

var neighbours = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Grow returns every pixel reachable from seed through pixels whose intensity
// is within radius of seedValue. A zero radius yields the seed alone.
func (g Grower) Grow(img *slice.Image, seed image.Point, seedValue, radius float64) (*Region, error) {
	if !img.Valid() {
		return nil, ErrNilSlice
	}

	win := img.Bounds()
	if !g.Window.Empty() {
		win = g.Window.Intersect(win)
	}
	if !seed.In(win) {
		return nil, fmt.Errorf("%w: %v not in %v", ErrSeedOutOfBounds, seed, win)
	}

	w, h := img.Width(), img.Height()
	reg := &Region{
		Mask:   mempool.GetBool(w * h),
		Width:  w,
		Height: h,
		Seed:   seed,
		Bounds: image.Rectangle{Min: seed, Max: seed.Add(image.Pt(1, 1))},
	}

	reg.Mask[seed.Y*w+seed.X] = true
	reg.Count = 1
	reg.Values = append(reg.Values, img.At(seed.X, seed.Y))
	if radius <= 0 || math.IsNaN(radius) {
		return reg, nil
	}

	q := list.New()
	q.PushBack(seed)
	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		p, ok := e.Value.(image.Point)
		if !ok {
			continue
		}
		for _, d := range neighbours {
			n := image.Pt(p.X+d[0], p.Y+d[1])
			if !n.In(win) {
				continue
			}
			i := n.Y*w + n.X
			if reg.Mask[i] {
				continue
			}
			v := img.At(n.X, n.Y)
			if math.Abs(v-seedValue) > radius {
				continue
			}
			reg.Mask[i] = true
			reg.Count++
			reg.Values = append(reg.Values, v)
			reg.Bounds = reg.Bounds.Union(image.Rectangle{Min: n, Max: n.Add(image.Pt(1, 1))})
			q.PushBack(n)
		}
	}

	return reg, nil
}
