package interactor

import (
	"testing"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gonum.org/v1/gonum/spatial/r3"
)

const propN = 9

func propSlice(data []float64) *slice.Image {
	buf := append([]float64(nil), data...)
	im, err := slice.New(propN, propN, 1, 1, buf, slice.DefaultPathPoint().Frame())
	if err != nil {
		panic(err)
	}
	return im
}

// TestUpdate_Idempotent verifies repeating a move yields the same contour.
func TestUpdate_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same pointer state gives same working contour", prop.ForAll(
		func(data []float64, sx, sy int, dx, dy float64) bool {
			img := propSlice(data)
			it := New(DefaultConfig())
			it.SetImageSlice(img)
			fr := it.Frame()

			if !it.StartDrawing(Event{Kind: PointerDown, World: img.PixelToWorld(float64(sx), float64(sy)), Frame: &fr}) {
				return false
			}
			move := Event{Kind: PointerMove, World: r3.Vec{X: dx, Y: dy}, Frame: &fr}
			if !it.UpdateDrawing(move) {
				return false
			}
			first := it.WorkingContour()
			if !it.UpdateDrawing(move) {
				return false
			}
			return first.Equal(it.WorkingContour())
		},
		gen.SliceOfN(propN*propN, gen.Float64Range(0, 100)),
		gen.IntRange(0, propN-1),
		gen.IntRange(0, propN-1),
		gen.Float64Range(-60, 60),
		gen.Float64Range(-60, 60),
	))

	properties.TestingRun(t)
}

// TestSession_CommitOnlyOnFinish verifies updates never touch the group and a
// finish commits at most once.
func TestSession_CommitOnlyOnFinish(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("group changes only at finish", prop.ForAll(
		func(data []float64, drags []float64, finish bool) bool {
			img := propSlice(data)
			g := &countingGroup{Group: contour.NewGroup()}
			it := New(DefaultConfig())
			it.SetImageSlice(img)
			it.SetGroup(g)
			fr := it.Frame()

			if !it.StartDrawing(Event{Kind: PointerDown, World: r3.Vec{}, Frame: &fr}) {
				return false
			}
			for _, d := range drags {
				it.UpdateDrawing(Event{Kind: PointerMove, World: r3.Vec{X: d}, Frame: &fr})
				if g.commits != 0 {
					return false
				}
			}
			if !finish {
				it.ClearDrawing()
				return g.commits == 0 && g.Len() == 0
			}
			committed := it.FinishDrawing(Event{Kind: PointerUp, World: r3.Vec{X: 100}, Frame: &fr})
			if committed {
				return g.commits == 1 && g.Len() == 1
			}
			return g.commits == 0
		},
		gen.SliceOfN(propN*propN, gen.Float64Range(0, 100)),
		gen.SliceOfN(5, gen.Float64Range(0, 100)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
