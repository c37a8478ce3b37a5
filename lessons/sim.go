package lessons

import (
	"context"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"activeinference/agents"
	"activeinference/grid_world"
)

// Sim is one assembled lesson: a grid, a prey and a predator, stepped by a
// single cooperative loop. All mutation happens on the loop's goroutine;
// the outside world sees only snapshot copies.
type Sim struct {
	Lesson   Lesson
	Grid     *grid_world.Grid
	Prey     *agents.Prey
	Predator *agents.Predator
}

// Snapshot is the read-only view handed to renderers each step. All grids
// and slices are defensive copies; belief mutates in place next tick.
type Snapshot struct {
	Tick      int
	GridSize  int
	Belief    [][]float64
	ModelGrid [][]float64
	Vision    []grid_world.Position
	Walls     []grid_world.Position
	Prey      grid_world.Position
	Predator  grid_world.Position
}

// Step executes one tick.
func (s *Sim) Step() {
	s.Grid.Step()
}

// Reset returns both agents to their starting cells, belief to uniform and
// the transition model to its freshly initialized state.
func (s *Sim) Reset() {
	s.Prey.Reset()
	s.Predator.Reset()
}

// Snapshot captures the current diagnostic state for rendering.
func (s *Sim) Snapshot() Snapshot {
	return Snapshot{
		Tick:      s.Grid.Tick(),
		GridSize:  s.Grid.Size(),
		Belief:    s.Predator.Belief(),
		ModelGrid: s.Predator.ModelGrid(),
		Vision:    s.Predator.VisionMask(),
		Walls:     s.Grid.Walls(),
		Prey:      s.Prey.Position(),
		Predator:  s.Predator.Position(),
	}
}

// Run drives the step loop at the given interval until ctx is done,
// publishing a snapshot after every tick. publish blocks the loop, which
// is what keeps each tick atomic: pausing the consumer pauses the world.
func (s *Sim) Run(ctx context.Context, interval time.Duration, publish func(Snapshot)) {
	for range channerics.NewTicker(ctx.Done(), interval) {
		s.Step()
		if publish != nil {
			publish(s.Snapshot())
		}
	}
}
