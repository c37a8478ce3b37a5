// generative holds the predator's pluggable transition models: the
// strategies that learn (or decline to learn) P(direction moved | state)
// for the hunted agent. All strategies sit behind the Model interface so
// the predator can be re-pointed at a different strategy mid-run without
// touching its own inference code.
package generative

import (
	"activeinference/grid_world"
)

// Model is the common capability set of every transition-model strategy.
type Model interface {
	// Update advances the model with the observed hunted entity, or nil to
	// signal a perception gap. For learning models a non-nil observation
	// both trains on the transition since the previous observation and
	// records the current state for the next prediction.
	Update(observed grid_world.Entity)

	// MovementProbabilities returns the direction distribution at the state
	// recorded by the most recent Update. An empty map means the model has
	// no information yet; callers fall back to uniform or skip the write.
	MovementProbabilities() map[grid_world.Direction]float64

	// Reset discards all learned state atomically.
	Reset()
}

// PositionGridder is implemented by models that can expose a full
// position-probability grid for rendering. Model-type dependent; callers
// narrow optionally.
type PositionGridder interface {
	PositionGrid() [][]float64
}

// Uniform is the no-learning baseline: every direction is equally likely.
type Uniform struct{}

// NewUniform returns the uniform transition model.
func NewUniform() *Uniform {
	return &Uniform{}
}

// Update is a no-op; the uniform model has nothing to learn.
func (u *Uniform) Update(grid_world.Entity) {}

// MovementProbabilities returns 1/8 per direction.
func (u *Uniform) MovementProbabilities() map[grid_world.Direction]float64 {
	return UniformDirections()
}

// Reset is a no-op.
func (u *Uniform) Reset() {}

// UniformDirections is the shared uniform 8-direction distribution, also
// the documented fallback when a learning model reports no information.
func UniformDirections() map[grid_world.Direction]float64 {
	probs := make(map[grid_world.Direction]float64, len(grid_world.Directions))
	p := 1.0 / float64(len(grid_world.Directions))
	for _, dir := range grid_world.Directions {
		probs[dir] = p
	}
	return probs
}
