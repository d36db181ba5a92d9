package position

import (
	"time"

	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/orbit"
)

// TrajectorySource returns the current sampled trajectory for a target.
type TrajectorySource interface {
	Trajectory(id ephem.TargetID) (ephem.Trajectory, bool)
}

// ElementSource returns fallback orbital elements, or nil.
type ElementSource interface {
	ElementsFor(id ephem.TargetID) *orbit.Elements
}

// Engine looks up per-target inputs and resolves positions. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	trajectories TrajectorySource
	elements     ElementSource
}

// NewEngine creates an engine. Either source may be nil.
func NewEngine(trajectories TrajectorySource, elements ElementSource) *Engine {
	return &Engine{trajectories: trajectories, elements: elements}
}

// AtIndex positions id at fractional sample index f.
func (e *Engine) AtIndex(id ephem.TargetID, f float64, opts Options) (Position, error) {
	traj, el := e.inputs(id)
	return ResolveIndex(traj, el, f, opts)
}

// At positions id at instant t.
func (e *Engine) At(id ephem.TargetID, t time.Time, opts Options) (Position, error) {
	traj, el := e.inputs(id)
	return ResolveTime(traj, el, t, opts)
}

func (e *Engine) inputs(id ephem.TargetID) (ephem.Trajectory, *orbit.Elements) {
	traj := ephem.Trajectory{Target: id}
	if e.trajectories != nil {
		if t, ok := e.trajectories.Trajectory(id); ok {
			traj = t
			traj.Target = id
		}
	}

	var el *orbit.Elements
	if e.elements != nil {
		el = e.elements.ElementsFor(id)
	}
	return traj, el
}

// Resolved pairs a target with its position or error.
type Resolved struct {
	Target   ephem.TargetID
	Position Position
	Err      error
}

// AllAt positions every target at instant t, in order.
func (e *Engine) AllAt(ids []ephem.TargetID, t time.Time, opts Options) []Resolved {
	out := make([]Resolved, len(ids))
	for i, id := range ids {
		p, err := e.At(id, t, opts)
		out[i] = Resolved{Target: id, Position: p, Err: err}
	}
	return out
}

// AllAtIndex positions every target at fractional index f, in order.
func (e *Engine) AllAtIndex(ids []ephem.TargetID, f float64, opts Options) []Resolved {
	out := make([]Resolved, len(ids))
	for i, id := range ids {
		p, err := e.AtIndex(id, f, opts)
		out[i] = Resolved{Target: id, Position: p, Err: err}
	}
	return out
}
