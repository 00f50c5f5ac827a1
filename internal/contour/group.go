package contour

import (
	"maps"
	"slices"
	"sync"
)

// Committer receives finished contours. SetContour replaces whatever is
// stored at timeStep.
type Committer interface {
	SetContour(timeStep int, c *Contour)
}

// Group keeps one contour per time step. Safe for concurrent use; concurrent
// commits to the same step resolve last-writer-wins.
type Group struct {
	mu       sync.RWMutex
	contours map[int]*Contour
	onSet    func(timeStep int, c *Contour)
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{contours: make(map[int]*Contour)}
}

// OnSet registers a hook called after every commit, outside the lock.
func (g *Group) OnSet(fn func(timeStep int, c *Contour)) {
	g.mu.Lock()
	g.onSet = fn
	g.mu.Unlock()
}

// SetContour stores a copy of c at timeStep. A nil contour removes the entry.
func (g *Group) SetContour(timeStep int, c *Contour) {
	cp := c.Clone()
	if cp != nil {
		cp.TimeStep = timeStep
	}

	g.mu.Lock()
	if cp == nil {
		delete(g.contours, timeStep)
	} else {
		g.contours[timeStep] = cp
	}
	hook := g.onSet
	g.mu.Unlock()

	if hook != nil {
		hook(timeStep, cp.Clone())
	}
}

// Contour returns a copy of the contour at timeStep.
func (g *Group) Contour(timeStep int) (*Contour, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.contours[timeStep]
	return c.Clone(), ok
}

// TimeSteps returns the populated time steps in ascending order.
func (g *Group) TimeSteps() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.contours))
}

// Len returns the number of stored contours.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.contours)
}

// Snapshot returns copies of every stored contour ordered by time step.
func (g *Group) Snapshot() []*Contour {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Contour, 0, len(g.contours))
	for _, t := range slices.Sorted(maps.Keys(g.contours)) {
		out = append(out, g.contours[t].Clone())
	}
	return out
}
