// Package interactor implements the threshold drawing gesture: a pointer
// drag that grows a region around the pressed pixel and traces its outline
// into a contour committed per time step.
package interactor

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/lumentrace/internal/boundary"
	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/region"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/threshold"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNotOnPlane means the event frame does not match the path point frame.
	ErrNotOnPlane = errors.New("interactor: event not on current contour plane")
	// ErrInvalidLocation means the pointer is outside the growth window.
	ErrInvalidLocation = errors.New("interactor: pointer outside slice")
	// ErrNoSlice means no slice is attached.
	ErrNoSlice = errors.New("interactor: no image slice")
	// ErrStaleSlice means the slice changed or was invalidated mid-session.
	ErrStaleSlice = errors.New("interactor: image slice is stale")
	// ErrNoContour means the gesture finished without a usable contour.
	ErrNoContour = errors.New("interactor: no contour to commit")
	// ErrCancelled marks an explicit ClearDrawing.
	ErrCancelled = errors.New("interactor: drawing cancelled")
)

// DefaultPlaneTolerance is the frame match tolerance in world units.
const DefaultPlaneTolerance = 1e-3

// Config holds the engine parameters.
type Config struct {
	ScaleBase       float64
	ResliceSize     float64
	PlaneTolerance  float64
	MinRegionPixels int
	SimplifyEpsilon float64
	TimeStep        int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ScaleBase:       threshold.DefaultScaleBase,
		PlaneTolerance:  DefaultPlaneTolerance,
		MinRegionPixels: boundary.DefaultMinPixels,
	}
}

type session struct {
	startPixel     image.Point
	startIntensity float64
	currentValue   float64
	timeStep       int
	lastPoint      r3.Vec
	img            *slice.Image
	window         image.Rectangle
	working        *contour.Contour
	started        time.Time
	updates        int
}

// Interactor is the Idle/Drawing state machine. It is not safe for
// concurrent use; drive it from one goroutine.
type Interactor struct {
	cfg       Config
	pathPoint slice.PathPoint
	frame     slice.Frame
	img       *slice.Image
	committer contour.Committer
	listener  Listener

	state State
	sess  *session
}

// New returns an idle interactor at the default path point.
func New(cfg Config) *Interactor {
	if cfg.PlaneTolerance <= 0 {
		cfg.PlaneTolerance = DefaultPlaneTolerance
	}
	if cfg.MinRegionPixels <= 0 {
		cfg.MinRegionPixels = boundary.DefaultMinPixels
	}
	it := &Interactor{cfg: cfg, listener: ListenerFuncs{}}
	it.SetPathPoint(slice.DefaultPathPoint())
	return it
}

// SetPathPoint stores the path point slices are cut at. A live session whose
// slice no longer sits on this plane aborts at its next event.
func (it *Interactor) SetPathPoint(p slice.PathPoint) {
	it.pathPoint = p
	it.frame = p.Frame()
}

// PathPoint returns the stored path point.
func (it *Interactor) PathPoint() slice.PathPoint { return it.pathPoint }

// Frame returns the frame of the stored path point.
func (it *Interactor) Frame() slice.Frame { return it.frame }

// SetImageSlice attaches the slice to draw on. Replacing it mid-session
// aborts the session at its next event.
func (it *Interactor) SetImageSlice(img *slice.Image) { it.img = img }

// ImageSlice returns the attached slice.
func (it *Interactor) ImageSlice() *slice.Image { return it.img }

// SetScaleBase sets the drag-to-threshold factor.
func (it *Interactor) SetScaleBase(v float64) { it.cfg.ScaleBase = v }

// ScaleBase returns the drag-to-threshold factor.
func (it *Interactor) ScaleBase() float64 { return it.cfg.ScaleBase }

// SetResliceSize bounds region growth to a square of size world units around
// the slice centre. Takes effect at the next StartDrawing.
func (it *Interactor) SetResliceSize(size float64) { it.cfg.ResliceSize = size }

// ResliceSize returns the growth window size.
func (it *Interactor) ResliceSize() float64 { return it.cfg.ResliceSize }

// SetTimeStep sets the time step the next session commits to.
func (it *Interactor) SetTimeStep(t int) { it.cfg.TimeStep = t }

// TimeStep returns the time step of the next session.
func (it *Interactor) TimeStep() int { return it.cfg.TimeStep }

// SetGroup sets the commit target.
func (it *Interactor) SetGroup(c contour.Committer) { it.committer = c }

// SetListener sets the notification sink; nil silences notifications.
func (it *Interactor) SetListener(l Listener) {
	if l == nil {
		l = ListenerFuncs{}
	}
	it.listener = l
}

// State returns the lifecycle state.
func (it *Interactor) State() State { return it.state }

// CurrentValue returns the threshold radius of the live session, 0 when idle.
func (it *Interactor) CurrentValue() float64 {
	if it.sess == nil {
		return 0
	}
	return it.sess.currentValue
}

// WorkingContour returns a copy of the working contour, nil if none.
func (it *Interactor) WorkingContour() *contour.Contour {
	if it.sess == nil {
		return nil
	}
	return it.sess.working.Clone()
}

// SeedPixel returns the pixel the live session started on.
func (it *Interactor) SeedPixel() (image.Point, bool) {
	if it.sess == nil {
		return image.Point{}, false
	}
	return it.sess.startPixel, true
}

// Handle dispatches ev to the matching transition and reports whether it was
// handled.
func (it *Interactor) Handle(ev Event) bool {
	switch ev.Kind {
	case PointerDown:
		return it.StartDrawing(ev)
	case PointerMove:
		return it.UpdateDrawing(ev)
	case PointerUp:
		return it.FinishDrawing(ev)
	case Cancel:
		return it.ClearDrawing()
	default:
		slog.Debug("Ignoring unknown event", "kind", ev.Kind)
		return false
	}
}

// StartDrawing opens a session at the pressed pixel. The event is ignored
// while drawing, when its frame is off the contour plane, or when the pointer
// misses the slice.
func (it *Interactor) StartDrawing(ev Event) bool {
	if it.state == Drawing {
		slog.Debug("StartDrawing ignored, session already active")
		return false
	}
	if err := it.onContourPlane(ev.Frame); err != nil {
		slog.Debug("StartDrawing rejected", "error", err)
		return false
	}
	seed, window, err := it.validLocation(ev.World)
	if err != nil {
		slog.Debug("StartDrawing rejected", "error", err)
		return false
	}

	it.sess = &session{
		startPixel:     seed,
		startIntensity: it.img.At(seed.X, seed.Y),
		timeStep:       it.cfg.TimeStep,
		lastPoint:      ev.World,
		img:            it.img,
		window:         window,
		started:        time.Now(),
	}
	it.state = Drawing

	slog.Debug("Drawing started",
		"seed_x", seed.X, "seed_y", seed.Y,
		"intensity", it.sess.startIntensity,
		"time_step", it.sess.timeStep)
	return true
}

// UpdateDrawing recomputes the contour for the current pointer position.
func (it *Interactor) UpdateDrawing(ev Event) bool {
	if it.state != Drawing {
		return false
	}
	if err := it.checkSession(ev); err != nil {
		it.abort(err)
		return false
	}
	if err := it.recompute(ev.World); err != nil {
		it.abort(err)
		return false
	}
	return true
}

// FinishDrawing recomputes once more and commits the working contour at the
// session's time step.
func (it *Interactor) FinishDrawing(ev Event) bool {
	if it.state != Drawing {
		return false
	}
	if err := it.checkSession(ev); err != nil {
		it.abort(err)
		return false
	}
	if err := it.recompute(ev.World); err != nil {
		it.abort(err)
		return false
	}

	s := it.sess
	if s.working == nil {
		it.abort(ErrNoContour)
		return false
	}

	if it.committer != nil {
		it.committer.SetContour(s.timeStep, s.working.Clone())
	} else {
		slog.Warn("Finished contour has no commit target", "time_step", s.timeStep)
	}

	end := EndEvent{
		Contour:   s.working.Clone(),
		TimeStep:  s.timeStep,
		Threshold: s.currentValue,
		Updates:   s.updates,
		Duration:  time.Since(s.started),
	}
	it.reset()

	slog.Info("Contour committed",
		"time_step", end.TimeStep,
		"points", end.Contour.Len(),
		"threshold", end.Threshold)
	it.listener.ContourEnded(end)
	return true
}

// ClearDrawing discards the session without committing.
func (it *Interactor) ClearDrawing() bool {
	if it.state != Drawing {
		return false
	}
	it.abort(ErrCancelled)
	return true
}

func (it *Interactor) onContourPlane(f *slice.Frame) error {
	if f == nil {
		return fmt.Errorf("%w: event has no frame", ErrNotOnPlane)
	}
	if !it.frame.Matches(*f, it.cfg.PlaneTolerance) {
		return ErrNotOnPlane
	}
	return nil
}

func (it *Interactor) validLocation(world r3.Vec) (image.Point, image.Rectangle, error) {
	if it.img == nil {
		return image.Point{}, image.Rectangle{}, ErrNoSlice
	}
	if !it.img.Valid() {
		return image.Point{}, image.Rectangle{}, ErrStaleSlice
	}
	if !it.img.Frame().Matches(it.frame, it.cfg.PlaneTolerance) {
		return image.Point{}, image.Rectangle{}, fmt.Errorf("%w: slice cut elsewhere", ErrStaleSlice)
	}
	window := it.img.Window(it.cfg.ResliceSize)
	p := it.img.PixelAt(world)
	if !p.In(window) {
		return image.Point{}, image.Rectangle{}, fmt.Errorf("%w: pixel %v not in %v", ErrInvalidLocation, p, window)
	}
	return p, window, nil
}

func (it *Interactor) checkSession(ev Event) error {
	s := it.sess
	switch {
	case it.img == nil:
		return ErrNoSlice
	case it.img != s.img || !s.img.Valid():
		return ErrStaleSlice
	}
	if !s.img.Frame().Matches(it.frame, it.cfg.PlaneTolerance) {
		return fmt.Errorf("%w: path point moved", ErrStaleSlice)
	}
	return it.onContourPlane(ev.Frame)
}

// recompute maps the drag to a radius, grows and traces. A degenerate result
// keeps the previous working contour.
func (it *Interactor) recompute(world r3.Vec) error {
	s := it.sess
	mapper := threshold.NewMapper(it.cfg.ScaleBase, s.img)
	s.currentValue = mapper.Value(threshold.DragDistance(s.lastPoint, world, s.img.Frame()))

	reg, err := region.Grower{Window: s.window}.Grow(s.img, s.startPixel, s.startIntensity, s.currentValue)
	if err != nil {
		return err
	}
	defer reg.Release()

	tracer := boundary.Tracer{MinPixels: it.cfg.MinRegionPixels, SimplifyEpsilon: it.cfg.SimplifyEpsilon}
	pts, err := tracer.Trace(reg.Mask, reg.Width, reg.Height)
	if errors.Is(err, boundary.ErrDegenerate) {
		slog.Debug("Degenerate region, keeping contour", "pixels", reg.Count, "threshold", s.currentValue)
		return nil
	}
	if err != nil {
		return err
	}

	c, err := contour.New(contour.MethodThreshold, s.timeStep, boundary.ToWorld(s.img, pts))
	if err != nil {
		return err
	}
	if c.Equal(s.working) {
		return nil
	}
	s.working = c
	s.updates++

	mean, std := regionStats(reg.Values)
	it.listener.ContourUpdated(UpdateEvent{
		Contour:       c.Clone(),
		TimeStep:      s.timeStep,
		Threshold:     s.currentValue,
		Seed:          s.startPixel,
		SeedIntensity: s.startIntensity,
		RegionPixels:  reg.Count,
		Mean:          mean,
		StdDev:        std,
		Elapsed:       time.Since(s.started),
	})
	return nil
}

func regionStats(values []float64) (float64, float64) {
	if len(values) < 2 {
		if len(values) == 1 {
			return values[0], 0
		}
		return 0, 0
	}
	return stat.MeanStdDev(values, nil)
}

func (it *Interactor) abort(reason error) {
	timeStep := it.sess.timeStep
	it.reset()
	slog.Debug("Drawing aborted", "time_step", timeStep, "reason", reason)
	it.listener.SessionAborted(AbortEvent{TimeStep: timeStep, Reason: reason})
}

func (it *Interactor) reset() {
	it.sess = nil
	it.state = Idle
}
