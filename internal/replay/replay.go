// Package replay drives an interactor from a recorded gesture script so
// drawing sessions can be reproduced outside an interactive host.
package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyScript is returned for scripts without sessions.
	ErrEmptyScript = errors.New("replay: script has no sessions")
	// ErrNoSampler is returned when a player has nothing to cut slices from.
	ErrNoSampler = errors.New("replay: player has no sampler")
)

// Script is a sequence of drawing sessions on one source image.
type Script struct {
	PathPoint *slice.PathPoint `yaml:"path_point,omitempty"`
	Sessions  []Session        `yaml:"sessions"`
}

// Session groups the events of one gesture together with the settings in
// force while it is replayed. Settings persist into later sessions.
type Session struct {
	Name        string           `yaml:"name,omitempty"`
	TimeStep    *int             `yaml:"time_step,omitempty"`
	ScaleBase   *float64         `yaml:"scale_base,omitempty"`
	ResliceSize *float64         `yaml:"reslice_size,omitempty"`
	PathPoint   *slice.PathPoint `yaml:"path_point,omitempty"`
	Events      []Step           `yaml:"events"`
}

// Step is one pointer event. Its position is given as a pixel, as a world
// point, or as a drag distance along the slice x axis from the last press.
type Step struct {
	Kind     string    `yaml:"kind"`
	Pixel    []float64 `yaml:"pixel,omitempty,flow"`
	World    []float64 `yaml:"world,omitempty,flow"`
	Drag     *float64  `yaml:"drag,omitempty"`
	OffPlane bool      `yaml:"off_plane,omitempty"`
	Reslice  bool      `yaml:"reslice,omitempty"`
}

// Load reads and validates a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: script path is user input by design
	if err != nil {
		return nil, fmt.Errorf("replay: read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("replay: parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes the script as YAML.
func (s *Script) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks event kinds and positions.
func (s *Script) Validate() error {
	if len(s.Sessions) == 0 {
		return ErrEmptyScript
	}
	for i, sess := range s.Sessions {
		if sess.ScaleBase != nil && *sess.ScaleBase < 0 {
			return fmt.Errorf("replay: session %d: negative scale_base", i)
		}
		if sess.ResliceSize != nil && *sess.ResliceSize < 0 {
			return fmt.Errorf("replay: session %d: negative reslice_size", i)
		}
		for j, st := range sess.Events {
			if err := st.validate(); err != nil {
				return fmt.Errorf("replay: session %d event %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func (st Step) validate() error {
	kind, err := interactor.ParseEventKind(st.Kind)
	if err != nil {
		return err
	}
	n := 0
	if st.Pixel != nil {
		if len(st.Pixel) != 2 {
			return fmt.Errorf("pixel needs 2 coordinates, got %d", len(st.Pixel))
		}
		n++
	}
	if st.World != nil {
		if len(st.World) != 3 {
			return fmt.Errorf("world needs 3 coordinates, got %d", len(st.World))
		}
		n++
	}
	if st.Drag != nil {
		n++
	}
	switch {
	case kind == interactor.Cancel && n > 0:
		return errors.New("cancel takes no position")
	case kind != interactor.Cancel && n != 1:
		return fmt.Errorf("%s needs exactly one of pixel, world or drag", kind)
	}
	return nil
}

// Outcome records how one drawing session ended.
type Outcome struct {
	Session   int
	Name      string
	TimeStep  int
	Committed bool
	Reason    string
	Points    int
	Threshold float64
	Updates   int
}

// Result summarises a replay.
type Result struct {
	Outcomes []Outcome
	// Slice is the slice the last event ran against.
	Slice *slice.Image
	// Seed is the pressed pixel of the last session that started.
	Seed *image.Point
}

// Committed returns the number of committed sessions.
func (r *Result) Committed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Committed {
			n++
		}
	}
	return n
}

// Player replays scripts against a fresh interactor.
type Player struct {
	Sampler slice.Sampler
	Engine  interactor.Config
	Group   contour.Committer
	// Listener additionally receives every notification; optional.
	Listener interactor.Listener
}

// Play runs every session of s in order. A session whose events leave it
// drawing is cancelled before the next one starts.
func (p *Player) Play(ctx context.Context, s *Script) (*Result, error) {
	if p.Sampler == nil {
		return nil, ErrNoSampler
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	it := interactor.New(p.Engine)
	if p.Group != nil {
		it.SetGroup(p.Group)
	}
	rec := &recorder{next: p.Listener}
	it.SetListener(rec)

	pp := slice.DefaultPathPoint()
	if s.PathPoint != nil {
		pp = *s.PathPoint
	}
	img, err := p.cut(it, pp)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, sess := range s.Sessions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec.session, rec.name = i, sess.Name

		if sess.PathPoint != nil {
			if img, err = p.cut(it, *sess.PathPoint); err != nil {
				return res, err
			}
		}
		if sess.TimeStep != nil {
			it.SetTimeStep(*sess.TimeStep)
		}
		if sess.ScaleBase != nil {
			it.SetScaleBase(*sess.ScaleBase)
		}
		if sess.ResliceSize != nil {
			it.SetResliceSize(*sess.ResliceSize)
		}

		anchor := img.Frame().Origin
		for _, st := range sess.Events {
			if st.Reslice {
				if img, err = p.cut(it, it.PathPoint()); err != nil {
					return res, err
				}
			}

			kind, _ := interactor.ParseEventKind(st.Kind)
			world := st.position(img, anchor)
			if kind == interactor.PointerDown && it.State() == interactor.Idle {
				anchor = world
			}

			var frame *slice.Frame
			if !st.OffPlane {
				f := img.Frame()
				frame = &f
			}

			before := it.State()
			handled := it.Handle(interactor.Event{Kind: kind, World: world, Frame: frame})
			if before == interactor.Idle && it.State() == interactor.Drawing {
				if seed, ok := it.SeedPixel(); ok {
					res.Seed = &seed
				}
			}
			slog.Debug("Replayed event", "session", i, "kind", kind, "handled", handled, "state", it.State())
		}

		if it.State() == interactor.Drawing {
			slog.Debug("Session left open, cancelling", "session", i)
			it.ClearDrawing()
		}
	}

	res.Outcomes = rec.outcomes
	res.Slice = img
	return res, nil
}

func (p *Player) cut(it *interactor.Interactor, pp slice.PathPoint) (*slice.Image, error) {
	img, err := p.Sampler.Sample(pp, 0)
	if err != nil {
		return nil, fmt.Errorf("replay: cut slice: %w", err)
	}
	it.SetPathPoint(pp)
	it.SetImageSlice(img)
	return img, nil
}

func (st Step) position(img *slice.Image, anchor r3.Vec) r3.Vec {
	switch {
	case st.Pixel != nil:
		return img.PixelToWorld(st.Pixel[0], st.Pixel[1])
	case st.World != nil:
		return r3.Vec{X: st.World[0], Y: st.World[1], Z: st.World[2]}
	case st.Drag != nil:
		return r3.Add(anchor, r3.Scale(*st.Drag, img.Frame().XAxis))
	default:
		return anchor
	}
}

type recorder struct {
	next     interactor.Listener
	session  int
	name     string
	outcomes []Outcome
}

func (r *recorder) ContourUpdated(e interactor.UpdateEvent) {
	if r.next != nil {
		r.next.ContourUpdated(e)
	}
}

func (r *recorder) ContourEnded(e interactor.EndEvent) {
	r.outcomes = append(r.outcomes, Outcome{
		Session:   r.session,
		Name:      r.name,
		TimeStep:  e.TimeStep,
		Committed: true,
		Points:    e.Contour.Len(),
		Threshold: e.Threshold,
		Updates:   e.Updates,
	})
	if r.next != nil {
		r.next.ContourEnded(e)
	}
}

func (r *recorder) SessionAborted(e interactor.AbortEvent) {
	r.outcomes = append(r.outcomes, Outcome{
		Session:  r.session,
		Name:     r.name,
		TimeStep: e.TimeStep,
		Reason:   e.Reason.Error(),
	})
	if r.next != nil {
		r.next.SessionAborted(e)
	}
}
