package support

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/cucumber/godog"
	"gonum.org/v1/gonum/spatial/r3"
)

// RegisterDrawingSteps registers the in-process interactor steps.
func (tc *TestContext) RegisterDrawingSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an? (\d+)x(\d+) slice with a centre spike of intensity (\d+)$`, tc.spikeSlice)
	sc.Step(`^an? (\d+)x(\d+) slice with a disc of radius (\d+) and intensity (\d+) on background (\d+)$`, tc.discSlice)
	sc.Step(`^the time step is (\d+)$`, tc.setTimeStep)
	sc.Step(`^the scale base is (\d+(?:\.\d+)?)$`, tc.setScaleBase)
	sc.Step(`^I press at pixel (\d+),(\d+)$`, tc.pressAt)
	sc.Step(`^I press at pixel (\d+),(\d+) off the contour plane$`, tc.pressOffPlane)
	sc.Step(`^I drag (\d+(?:\.\d+)?) units$`, tc.dragBy)
	sc.Step(`^I release after dragging (\d+(?:\.\d+)?) units$`, tc.releaseAfter)
	sc.Step(`^I cancel$`, tc.cancel)
	sc.Step(`^the slice is invalidated$`, tc.invalidateSlice)
	sc.Step(`^the path point moves$`, tc.movePathPoint)

	sc.Step(`^the event is (handled|ignored)$`, tc.eventIs)
	sc.Step(`^the interactor is (idle|drawing)$`, tc.interactorIs)
	sc.Step(`^the threshold value is (\d+(?:\.\d+)?)$`, tc.thresholdIs)
	sc.Step(`^(\d+) contour updates? (?:was|were) published$`, tc.updatesPublished)
	sc.Step(`^a contour is stored at time step (\d+)$`, tc.contourStored)
	sc.Step(`^no contour is stored at time step (\d+)$`, tc.noContourStored)
	sc.Step(`^the contour at time step (\d+) has area (\d+(?:\.\d+)?)$`, tc.contourArea)
	sc.Step(`^the session was aborted because (.+)$`, tc.abortedBecause)
	sc.Step(`^no session was aborted$`, tc.noAborts)
}

func (tc *TestContext) useGrid(w, h int, value func(x, y int) float64) error {
	data := make([]float64, w*h)
	for y := range h {
		for x := range w {
			data[y*w+x] = value(x, y)
		}
	}
	img, err := slice.New(w, h, 1, 1, data, tc.Interactor.PathPoint().Frame())
	if err != nil {
		return err
	}
	tc.Slice = img
	tc.Interactor.SetImageSlice(img)
	return nil
}

func (tc *TestContext) spikeSlice(w, h, v int) error {
	return tc.useGrid(w, h, func(x, y int) float64 {
		if x == w/2 && y == h/2 {
			return float64(v)
		}
		return 0
	})
}

func (tc *TestContext) discSlice(w, h, r, in, out int) error {
	cx, cy := w/2, h/2
	return tc.useGrid(w, h, func(x, y int) float64 {
		dx, dy := x-cx, y-cy
		if dx*dx+dy*dy <= r*r {
			return float64(in)
		}
		return float64(out)
	})
}

func (tc *TestContext) setTimeStep(t int) error {
	tc.Interactor.SetTimeStep(t)
	return nil
}

func (tc *TestContext) setScaleBase(v float64) error {
	tc.Interactor.SetScaleBase(v)
	return nil
}

func (tc *TestContext) pressAt(x, y int) error {
	if tc.Slice == nil {
		return errors.New("no slice set up")
	}
	tc.Anchor = tc.Slice.PixelToWorld(float64(x), float64(y))
	tc.Handled = tc.Interactor.Handle(interactor.Event{Kind: interactor.PointerDown, World: tc.Anchor, Frame: tc.frame()})
	return nil
}

func (tc *TestContext) pressOffPlane(x, y int) error {
	if tc.Slice == nil {
		return errors.New("no slice set up")
	}
	other := slice.PathPoint{Tangent: r3.Vec{X: 1}, Rotation: r3.Vec{Y: 1}}.Frame()
	tc.Anchor = tc.Slice.PixelToWorld(float64(x), float64(y))
	tc.Handled = tc.Interactor.Handle(interactor.Event{Kind: interactor.PointerDown, World: tc.Anchor, Frame: &other})
	return nil
}

func (tc *TestContext) dragTo(kind interactor.EventKind, d float64) {
	world := r3.Add(tc.Anchor, r3.Scale(d, tc.Interactor.Frame().XAxis))
	tc.Handled = tc.Interactor.Handle(interactor.Event{Kind: kind, World: world, Frame: tc.frame()})
}

func (tc *TestContext) dragBy(d float64) error {
	tc.dragTo(interactor.PointerMove, d)
	return nil
}

func (tc *TestContext) releaseAfter(d float64) error {
	tc.dragTo(interactor.PointerUp, d)
	return nil
}

func (tc *TestContext) cancel() error {
	tc.Handled = tc.Interactor.ClearDrawing()
	return nil
}

func (tc *TestContext) invalidateSlice() error {
	if tc.Slice == nil {
		return errors.New("no slice set up")
	}
	tc.Slice.Invalidate()
	return nil
}

func (tc *TestContext) movePathPoint() error {
	pp := tc.Interactor.PathPoint()
	pp.Position = r3.Add(pp.Position, r3.Scale(5, pp.Tangent))
	tc.Interactor.SetPathPoint(pp)
	return nil
}

func (tc *TestContext) eventIs(want string) error {
	if tc.Handled != (want == "handled") {
		return fmt.Errorf("expected the event to be %s, handled=%v", want, tc.Handled)
	}
	return nil
}

func (tc *TestContext) interactorIs(want string) error {
	if got := tc.Interactor.State().String(); got != want {
		return fmt.Errorf("expected interactor %s, got %s", want, got)
	}
	return nil
}

func (tc *TestContext) thresholdIs(want float64) error {
	if got := tc.Interactor.CurrentValue(); math.Abs(got-want) > 1e-9 {
		return fmt.Errorf("expected threshold %g, got %g", want, got)
	}
	return nil
}

func (tc *TestContext) updatesPublished(n int) error {
	if len(tc.Updates) != n {
		return fmt.Errorf("expected %d updates, got %d", n, len(tc.Updates))
	}
	return nil
}

func (tc *TestContext) contourStored(t int) error {
	c, ok := tc.Group.Contour(t)
	if !ok {
		return fmt.Errorf("no contour at time step %d (have %v)", t, tc.Group.TimeSteps())
	}
	if c.TimeStep != t {
		return fmt.Errorf("stored contour carries time step %d, want %d", c.TimeStep, t)
	}
	return nil
}

func (tc *TestContext) noContourStored(t int) error {
	if _, ok := tc.Group.Contour(t); ok {
		return fmt.Errorf("unexpected contour at time step %d", t)
	}
	return nil
}

func (tc *TestContext) contourArea(t int, want float64) error {
	c, ok := tc.Group.Contour(t)
	if !ok {
		return fmt.Errorf("no contour at time step %d", t)
	}
	if got := c.Area(); math.Abs(got-want) > 1e-9 {
		return fmt.Errorf("expected area %g, got %g", want, got)
	}
	return nil
}

func (tc *TestContext) abortedBecause(reason string) error {
	if len(tc.Aborts) == 0 {
		return errors.New("no session was aborted")
	}
	last := tc.Aborts[len(tc.Aborts)-1].Reason
	if !strings.Contains(last.Error(), reason) {
		return fmt.Errorf("expected abort reason containing %q, got %q", reason, last)
	}
	return nil
}

func (tc *TestContext) noAborts() error {
	if len(tc.Aborts) != 0 {
		return fmt.Errorf("expected no aborts, got %d", len(tc.Aborts))
	}
	return nil
}
