package boundary

import (
	"container/list"
	"image"

	"github.com/MeKo-Tech/lumentrace/internal/mempool"
)

// component summarises one 8-connected component of a mask.
type component struct {
	label int
	count int
	start image.Point // first pixel in raster order
}

// eight-neighbourhood, clockwise in image coordinates starting east
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// labelComponents labels the 8-connected components of mask. The label buffer
// comes from the pool; callers return it with mempool.PutInt.
func labelComponents(mask []bool, w, h int) ([]component, []int) {
	labels := mempool.GetInt(w * h)
	var comps []component
	label := 1

	for y := range h {
		for x := range w {
			idx := y*w + x
			if mask[idx] && labels[idx] == 0 {
				n := floodLabel(mask, labels, w, h, x, y, label)
				comps = append(comps, component{label: label, count: n, start: image.Pt(x, y)})
				label++
			}
		}
	}

	return comps, labels
}

func floodLabel(mask []bool, labels []int, w, h, sx, sy, label int) int {
	q := list.New()
	q.PushBack(sy*w + sx)
	labels[sy*w+sx] = label
	count := 0

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		count++
		cx, cy := ci%w, ci/w
		for i := range 8 {
			nx, ny := cx+ndx[i], cy+ndy[i]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			ni := ny*w + nx
			if mask[ni] && labels[ni] == 0 {
				labels[ni] = label
				q.PushBack(ni)
			}
		}
	}

	return count
}

// largest returns the component with the most pixels; ties go to the one
// found first in raster order.
func largest(comps []component) (component, bool) {
	if len(comps) == 0 {
		return component{}, false
	}
	best := comps[0]
	for _, c := range comps[1:] {
		if c.count > best.count {
			best = c
		}
	}
	return best, true
}
