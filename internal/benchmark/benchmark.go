// Package benchmark measures the latency of complete drawing gestures: one
// press, a series of drags and the release, timed per pointer event.
package benchmark

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the outcome of running one gesture repeatedly. Latencies are
// per pointer event.
type Result struct {
	Name       string
	Iterations int
	Events     int
	Committed  int
	Total      time.Duration
	Mean       time.Duration
	P50        time.Duration
	P95        time.Duration
	Max        time.Duration

	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Error        error
}

// String returns a formatted string representation of the result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}

	// TotalAlloc is cumulative, so the difference never underflows
	allocated := r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes
	return fmt.Sprintf("%s: %d iterations, %d events, %d committed, mean %v, p50 %v, p95 %v, max %v, total %v, alloc %d KB",
		r.Name, r.Iterations, r.Events, r.Committed, r.Mean, r.P50, r.P95, r.Max, r.Total, allocated/1024)
}

// Gesture is a press at Seed followed by one event per drag distance; the
// last drag releases.
type Gesture struct {
	Name   string
	Slice  *slice.Image
	Seed   image.Point
	Drags  []float64
	Engine interactor.Config

	pathPoint slice.PathPoint
}

// NewGesture cuts the slice at pp once; every run draws on that slice.
func NewGesture(name string, sampler slice.Sampler, pp slice.PathPoint, seed image.Point, drags []float64,
	engine interactor.Config,
) (*Gesture, error) {
	if len(drags) == 0 {
		return nil, errors.New("benchmark: gesture needs at least one drag")
	}
	img, err := sampler.Sample(pp, 0)
	if err != nil {
		return nil, fmt.Errorf("benchmark: cut slice: %w", err)
	}
	if !seed.In(img.Bounds()) {
		return nil, fmt.Errorf("benchmark: seed %v outside slice %v", seed, img.Bounds())
	}
	return &Gesture{Name: name, Slice: img, Seed: seed, Drags: drags, Engine: engine, pathPoint: pp}, nil
}

// LinearDrags returns steps drag distances evenly spaced up to maxDrag.
func LinearDrags(maxDrag float64, steps int) []float64 {
	steps = max(steps, 1)
	out := make([]float64, steps)
	for i := range out {
		out[i] = maxDrag * float64(i+1) / float64(steps)
	}
	return out
}

// run plays the gesture once on a fresh interactor, appending the latency of
// each event in seconds.
func (g *Gesture) run(latencies []float64) ([]float64, bool) {
	it := interactor.New(g.Engine)
	it.SetPathPoint(g.pathPoint)
	it.SetImageSlice(g.Slice)
	group := contour.NewGroup()
	it.SetGroup(group)

	frame := g.Slice.Frame()
	anchor := g.Slice.PixelToWorld(float64(g.Seed.X), float64(g.Seed.Y))
	handle := func(ev interactor.Event) {
		start := time.Now()
		it.Handle(ev)
		latencies = append(latencies, time.Since(start).Seconds())
	}

	handle(interactor.Event{Kind: interactor.PointerDown, World: anchor, Frame: &frame})
	for i, d := range g.Drags {
		kind := interactor.PointerMove
		if i == len(g.Drags)-1 {
			kind = interactor.PointerUp
		}
		handle(interactor.Event{Kind: kind, World: r3.Add(anchor, r3.Scale(d, frame.XAxis)), Frame: &frame})
	}
	return latencies, group.Len() > 0
}

// Suite manages multiple gestures.
type Suite struct {
	gestures []*Gesture
	results  []Result
	mu       sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a gesture to the suite.
func (s *Suite) Add(g *Gesture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gestures = append(s.gestures, g)
}

// Run runs the named gesture for the given number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	s.mu.Lock()
	idx := slices.IndexFunc(s.gestures, func(g *Gesture) bool { return g.Name == name })
	var g *Gesture
	if idx >= 0 {
		g = s.gestures[idx]
	}
	s.mu.Unlock()

	if g == nil {
		return Result{Name: name, Error: fmt.Errorf("gesture '%s' not found", name)}
	}
	return runGesture(g, iterations)
}

// RunAll runs every gesture in the suite.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.gestures))
	for _, g := range s.gestures {
		s.results = append(s.results, runGesture(g, iterations))
	}
	return s.results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// WriteResults writes formatted results to w.
func (s *Suite) WriteResults(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Gesture latency"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "==============="); err != nil {
		return err
	}
	for _, r := range s.Results() {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return err
		}
	}
	return nil
}

func runGesture(g *Gesture, iterations int) Result {
	if iterations <= 0 {
		return Result{Name: g.Name, Error: fmt.Errorf("invalid iteration count %d", iterations)}
	}

	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := NewTimer(g.Name)
	latencies := make([]float64, 0, iterations*(len(g.Drags)+1))
	committed := 0
	for range iterations {
		var ok bool
		latencies, ok = g.run(latencies)
		if ok {
			committed++
		}
	}
	total := timer.Stop()
	memAfter := GetMemoryStats()

	slices.Sort(latencies)
	seconds := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }
	return Result{
		Name:         g.Name,
		Iterations:   iterations,
		Events:       len(latencies),
		Committed:    committed,
		Total:        total,
		Mean:         seconds(stat.Mean(latencies, nil)),
		P50:          seconds(stat.Quantile(0.5, stat.Empirical, latencies, nil)),
		P95:          seconds(stat.Quantile(0.95, stat.Empirical, latencies, nil)),
		Max:          seconds(latencies[len(latencies)-1]),
		MemoryBefore: memBefore,
		MemoryAfter:  memAfter,
	}
}

// Disc renders a size x size grey image holding a centred disc, the
// synthetic slice used when no image is given.
func Disc(size, radius int, in, out uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	c := size / 2
	for y := range size {
		for x := range size {
			v := out
			if dx, dy := x-c, y-c; dx*dx+dy*dy <= radius*radius {
				v = in
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}
