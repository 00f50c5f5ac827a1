package interactor

import (
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type recorder struct {
	updates []UpdateEvent
	ends    []EndEvent
	aborts  []AbortEvent
}

func (r *recorder) ContourUpdated(e UpdateEvent) { r.updates = append(r.updates, e) }
func (r *recorder) ContourEnded(e EndEvent)      { r.ends = append(r.ends, e) }
func (r *recorder) SessionAborted(e AbortEvent)  { r.aborts = append(r.aborts, e) }

// countingGroup records every commit on top of a real group.
type countingGroup struct {
	*contour.Group
	commits int
}

func (g *countingGroup) SetContour(t int, c *contour.Contour) {
	g.commits++
	g.Group.SetContour(t, c)
}

type fixture struct {
	it    *Interactor
	img   *slice.Image
	group *countingGroup
	rec   *recorder
}

func newFixture(t *testing.T, grid testutil.Grid) *fixture {
	t.Helper()
	f := &fixture{
		it:    New(DefaultConfig()),
		img:   grid.Slice(t),
		group: &countingGroup{Group: contour.NewGroup()},
		rec:   &recorder{},
	}
	f.it.SetImageSlice(f.img)
	f.it.SetGroup(f.group)
	f.it.SetListener(f.rec)
	return f
}

func (f *fixture) frame() *slice.Frame {
	fr := f.it.Frame()
	return &fr
}

func (f *fixture) at(kind EventKind, px, py float64) Event {
	return Event{Kind: kind, World: f.img.PixelToWorld(px, py), Frame: f.frame()}
}

// drag returns a move to a point dist world units right of the centre pixel.
func (f *fixture) drag(kind EventKind, dist float64) Event {
	w := r3.Add(f.img.PixelToWorld(5, 5), r3.Vec{X: dist})
	return Event{Kind: kind, World: w, Frame: f.frame()}
}

func TestCenterSpikeScenario(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))
	assert.Equal(t, Drawing, f.it.State())
	assert.InDelta(t, 0, f.it.CurrentValue(), 0)

	// zero drag: region is the seed alone, no contour
	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 0)))
	assert.InDelta(t, 0, f.it.CurrentValue(), 0)
	assert.Nil(t, f.it.WorkingContour())
	assert.Empty(t, f.rec.updates)

	// just below the spike contrast still only the seed
	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 99)))
	assert.Nil(t, f.it.WorkingContour())

	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 100)))
	assert.InDelta(t, 100, f.it.CurrentValue(), 0)
	wc := f.it.WorkingContour()
	require.NotNil(t, wc)
	assert.Equal(t, contour.MethodThreshold, wc.Method)
	assert.Equal(t, []r3.Vec{
		{X: -5, Y: -5}, {X: 5, Y: -5}, {X: 5, Y: 5}, {X: -5, Y: 5},
	}, wc.Points)

	require.Len(t, f.rec.updates, 1)
	assert.Equal(t, 121, f.rec.updates[0].RegionPixels)
	assert.Equal(t, image.Pt(5, 5), f.rec.updates[0].Seed)
	assert.InDelta(t, 100, f.rec.updates[0].SeedIntensity, 0)

	// beyond the range the radius clamps
	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 500)))
	assert.InDelta(t, 100, f.it.CurrentValue(), 0)

	require.True(t, f.it.FinishDrawing(f.drag(PointerUp, 500)))
	assert.Equal(t, Idle, f.it.State())
	got, ok := f.group.Contour(0)
	require.True(t, ok)
	assert.Equal(t, wc.Points, got.Points)
	require.Len(t, f.rec.ends, 1)
	assert.Equal(t, 0, f.rec.ends[0].TimeStep)
	assert.InDelta(t, 100, f.rec.ends[0].Threshold, 0)
}

func TestStartGuard_FrameMismatch(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	other := slice.PathPoint{Position: r3.Vec{Z: 0.5}, Tangent: r3.Vec{Z: 1}, Rotation: r3.Vec{X: 1}}.Frame()
	ev := Event{Kind: PointerDown, World: f.img.PixelToWorld(5, 5), Frame: &other}

	assert.False(t, f.it.StartDrawing(ev))
	assert.Equal(t, Idle, f.it.State())
	_, ok := f.it.SeedPixel()
	assert.False(t, ok)

	// within tolerance is accepted
	near := f.it.Frame()
	near.Origin = r3.Vec{Z: 1e-4}
	ev.Frame = &near
	assert.True(t, f.it.StartDrawing(ev))
}

func TestStartGuard_Location(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	assert.False(t, f.it.StartDrawing(f.at(PointerDown, 11, 5)))
	assert.False(t, f.it.StartDrawing(f.at(PointerDown, -0.6, 5)))
	assert.False(t, f.it.StartDrawing(Event{Kind: PointerDown, World: r3.Vec{}}))
	assert.Equal(t, Idle, f.it.State())

	// reslice window narrows the valid area
	f.it.SetResliceSize(4)
	assert.False(t, f.it.StartDrawing(f.at(PointerDown, 1, 1)))
	assert.True(t, f.it.StartDrawing(f.at(PointerDown, 4, 6)))
	seed, ok := f.it.SeedPixel()
	require.True(t, ok)
	assert.Equal(t, image.Pt(4, 6), seed)
}

func TestStartGuard_Slice(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))
	ev := f.at(PointerDown, 5, 5)

	f.it.SetImageSlice(nil)
	assert.False(t, f.it.StartDrawing(ev))

	f.img.Invalidate()
	f.it.SetImageSlice(f.img)
	assert.False(t, f.it.StartDrawing(ev))
	assert.Equal(t, Idle, f.it.State())
}

func TestStartWhileDrawingIsIgnored(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))
	assert.False(t, f.it.StartDrawing(f.at(PointerDown, 2, 2)))

	seed, _ := f.it.SeedPixel()
	assert.Equal(t, image.Pt(5, 5), seed)
}

func TestTransitionsOutsideSession(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	assert.False(t, f.it.UpdateDrawing(f.drag(PointerMove, 10)))
	assert.False(t, f.it.FinishDrawing(f.drag(PointerUp, 10)))
	assert.False(t, f.it.ClearDrawing())
	assert.Equal(t, 0, f.group.commits)
	assert.Empty(t, f.rec.aborts)
}

func TestCommitOnlyOnFinish(t *testing.T) {
	f := newFixture(t, testutil.Disc(15, 15, 7, 7, 4, 200, 10))
	f.it.SetTimeStep(3)
	center := func(k EventKind, d float64) Event {
		return Event{Kind: k, World: r3.Add(f.img.PixelToWorld(7, 7), r3.Vec{Y: d}), Frame: f.frame()}
	}

	require.True(t, f.it.StartDrawing(center(PointerDown, 0)))
	for _, d := range []float64{5, 20, 40, 60, 80} {
		require.True(t, f.it.UpdateDrawing(center(PointerMove, d)))
		assert.Equal(t, 0, f.group.commits)
		_, ok := f.group.Contour(3)
		assert.False(t, ok)
	}
	require.True(t, f.it.FinishDrawing(center(PointerUp, 80)))
	assert.Equal(t, 1, f.group.commits)

	c, ok := f.group.Contour(3)
	require.True(t, ok)
	assert.Equal(t, 3, c.TimeStep)
	assert.InDelta(t, 38, c.Area(), 1e-9)
}

func TestCancelLeavesNoTrace(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))
	prior, err := contour.New(contour.MethodThreshold, 0, []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}})
	require.NoError(t, err)
	f.group.SetContour(0, prior)
	f.group.commits = 0

	require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))
	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 100)))
	require.NotNil(t, f.it.WorkingContour())
	require.True(t, f.it.ClearDrawing())

	assert.Equal(t, Idle, f.it.State())
	assert.Nil(t, f.it.WorkingContour())
	assert.Equal(t, 0, f.group.commits)
	got, ok := f.group.Contour(0)
	require.True(t, ok)
	assert.True(t, prior.Equal(got))
	require.Len(t, f.rec.aborts, 1)
	assert.ErrorIs(t, f.rec.aborts[0].Reason, ErrCancelled)
}

func TestIdempotentRecompute(t *testing.T) {
	f := newFixture(t, testutil.Disc(15, 15, 7, 7, 4, 200, 10))
	ev := Event{Kind: PointerMove, World: r3.Add(f.img.PixelToWorld(7, 7), r3.Vec{X: 30}), Frame: f.frame()}

	require.True(t, f.it.StartDrawing(Event{Kind: PointerDown, World: f.img.PixelToWorld(7, 7), Frame: f.frame()}))
	require.True(t, f.it.UpdateDrawing(ev))
	first := f.it.WorkingContour()
	require.True(t, f.it.UpdateDrawing(ev))
	second := f.it.WorkingContour()

	require.NotNil(t, first)
	assert.True(t, first.Equal(second))
	// unchanged contour is not re-published
	assert.Len(t, f.rec.updates, 1)
}

func TestDegenerateKeepsPreviousContour(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))
	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 100)))
	before := f.it.WorkingContour()

	// shrinking the radius back to the seed alone is degenerate
	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 1)))
	assert.Equal(t, Drawing, f.it.State())
	assert.True(t, before.Equal(f.it.WorkingContour()))
	assert.Len(t, f.rec.updates, 1)

	require.True(t, f.it.FinishDrawing(f.drag(PointerUp, 1)))
	got, ok := f.group.Contour(0)
	require.True(t, ok)
	assert.Equal(t, before.Points, got.Points)
}

func TestFinishWithoutContourAborts(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))
	assert.False(t, f.it.FinishDrawing(f.drag(PointerUp, 0)))

	assert.Equal(t, Idle, f.it.State())
	assert.Equal(t, 0, f.group.commits)
	require.Len(t, f.rec.aborts, 1)
	assert.ErrorIs(t, f.rec.aborts[0].Reason, ErrNoContour)
}

func TestMidSessionInvalidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
		event  func(f *fixture) Event
		reason error
	}{
		{
			name:   "slice invalidated",
			mutate: func(f *fixture) { f.img.Invalidate() },
			event:  func(f *fixture) Event { return f.drag(PointerMove, 50) },
			reason: ErrStaleSlice,
		},
		{
			name:   "slice detached",
			mutate: func(f *fixture) { f.it.SetImageSlice(nil) },
			event:  func(f *fixture) Event { return f.drag(PointerUp, 50) },
			reason: ErrNoSlice,
		},
		{
			name: "slice replaced",
			mutate: func(f *fixture) {
				f.it.SetImageSlice(testutil.CenterSpike(11, 100).Slice(t))
			},
			event:  func(f *fixture) Event { return f.drag(PointerMove, 50) },
			reason: ErrStaleSlice,
		},
		{
			name: "path point moved",
			mutate: func(f *fixture) {
				p := slice.DefaultPathPoint()
				p.Position = r3.Vec{Z: 2}
				f.it.SetPathPoint(p)
			},
			event:  func(f *fixture) Event { return f.drag(PointerMove, 50) },
			reason: ErrStaleSlice,
		},
		{
			name:   "event without frame",
			mutate: func(f *fixture) {},
			event: func(f *fixture) Event {
				ev := f.drag(PointerMove, 50)
				ev.Frame = nil
				return ev
			},
			reason: ErrNotOnPlane,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testutil.CenterSpike(11, 100))
			require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))

			tt.mutate(f)
			assert.False(t, f.it.Handle(tt.event(f)))

			assert.Equal(t, Idle, f.it.State())
			assert.Equal(t, 0, f.group.commits)
			require.Len(t, f.rec.aborts, 1)
			assert.True(t, errors.Is(f.rec.aborts[0].Reason, tt.reason), "reason %v", f.rec.aborts[0].Reason)
		})
	}
}

func TestHandleDispatch(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))

	assert.True(t, f.it.Handle(f.at(PointerDown, 5, 5)))
	assert.True(t, f.it.Handle(f.drag(PointerMove, 100)))
	assert.True(t, f.it.Handle(f.drag(PointerUp, 100)))
	assert.Equal(t, 1, f.group.commits)

	assert.True(t, f.it.Handle(f.at(PointerDown, 5, 5)))
	assert.True(t, f.it.Handle(Event{Kind: Cancel}))
	assert.False(t, f.it.Handle(Event{Kind: EventKind(42)}))
	assert.Equal(t, 1, f.group.commits)
}

func TestNewSessionUsesLatestSettings(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))
	f.it.SetScaleBase(10)
	f.it.SetTimeStep(9)
	assert.InDelta(t, 10, f.it.ScaleBase(), 0)
	assert.Equal(t, 9, f.it.TimeStep())

	require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))
	require.True(t, f.it.UpdateDrawing(f.drag(PointerMove, 10)))
	assert.InDelta(t, 100, f.it.CurrentValue(), 0)

	f.it.SetTimeStep(1)
	require.True(t, f.it.FinishDrawing(f.drag(PointerUp, 10)))
	assert.Equal(t, []int{9}, f.group.TimeSteps())
}

func TestCommitWithoutGroup(t *testing.T) {
	f := newFixture(t, testutil.CenterSpike(11, 100))
	f.it.SetGroup(nil)
	f.it.SetListener(nil)

	require.True(t, f.it.StartDrawing(f.at(PointerDown, 5, 5)))
	assert.True(t, f.it.FinishDrawing(f.drag(PointerUp, 100)))
	assert.Equal(t, Idle, f.it.State())
}

func TestAnisotropicSpacing(t *testing.T) {
	it := New(DefaultConfig())
	img := testutil.CenterSpike(11, 100).SliceAt(t, slice.DefaultPathPoint(), 0.5, 2)
	it.SetImageSlice(img)
	g := contour.NewGroup()
	it.SetGroup(g)
	fr := it.Frame()

	require.True(t, it.StartDrawing(Event{Kind: PointerDown, World: r3.Vec{}, Frame: &fr}))
	require.True(t, it.FinishDrawing(Event{Kind: PointerUp, World: r3.Vec{Y: 100}, Frame: &fr}))

	c, ok := g.Contour(0)
	require.True(t, ok)
	assert.Equal(t, []r3.Vec{
		{X: -2.5, Y: -10}, {X: 2.5, Y: -10}, {X: 2.5, Y: 10}, {X: -2.5, Y: 10},
	}, c.Points)
}

func TestParseEventKind(t *testing.T) {
	for _, k := range []EventKind{PointerDown, PointerMove, PointerUp, Cancel} {
		got, err := ParseEventKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseEventKind(" MOVE ")
	require.NoError(t, err)
	assert.Equal(t, PointerMove, got)

	_, err = ParseEventKind("drag")
	require.Error(t, err)

	assert.Equal(t, "drawing", Drawing.String())
	assert.Equal(t, "idle", Idle.String())
}
