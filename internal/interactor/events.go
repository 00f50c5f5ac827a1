package interactor

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"gonum.org/v1/gonum/spatial/r3"
)

// State is the lifecycle state of an Interactor.
type State int

const (
	// Idle means no gesture is in progress.
	Idle State = iota
	// Drawing means a session is live.
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind identifies a pointer interaction.
type EventKind int

const (
	// PointerDown starts a drawing session.
	PointerDown EventKind = iota
	// PointerMove updates the working contour.
	PointerMove
	// PointerUp commits the working contour.
	PointerUp
	// Cancel discards the session.
	Cancel
)

var kindNames = map[EventKind]string{
	PointerDown: "down",
	PointerMove: "move",
	PointerUp:   "up",
	Cancel:      "cancel",
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseEventKind accepts down, move, up and cancel (case-insensitive).
func ParseEventKind(s string) (EventKind, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is a pointer interaction in world space. Frame is the slice frame the
// host generated the event against; nil never matches the contour plane.
type Event struct {
	Kind  EventKind
	World r3.Vec
	Frame *slice.Frame
}

// UpdateEvent is published whenever the working contour changes.
type UpdateEvent struct {
	Contour       *contour.Contour
	TimeStep      int
	Threshold     float64
	Seed          image.Point
	SeedIntensity float64
	RegionPixels  int
	Mean          float64
	StdDev        float64
	Elapsed       time.Duration
}

// EndEvent is published when a session commits.
type EndEvent struct {
	Contour   *contour.Contour
	TimeStep  int
	Threshold float64
	Updates   int
	Duration  time.Duration
}

// AbortEvent is published when a session ends without commit.
type AbortEvent struct {
	TimeStep int
	Reason   error
}

// Listener observes session progress. Calls happen synchronously on the
// goroutine driving the interactor.
type Listener interface {
	ContourUpdated(UpdateEvent)
	ContourEnded(EndEvent)
	SessionAborted(AbortEvent)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnUpdate func(UpdateEvent)
	OnEnd    func(EndEvent)
	OnAbort  func(AbortEvent)
}

func (l ListenerFuncs) ContourUpdated(e UpdateEvent) {
	if l.OnUpdate != nil {
		l.OnUpdate(e)
	}
}

func (l ListenerFuncs) ContourEnded(e EndEvent) {
	if l.OnEnd != nil {
		l.OnEnd(e)
	}
}

func (l ListenerFuncs) SessionAborted(e AbortEvent) {
	if l.OnAbort != nil {
		l.OnAbort(e)
	}
}
