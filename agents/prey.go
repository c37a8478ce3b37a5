// agents implements the two lesson roles: the hunted prey, whose movement
// is drawn from a pluggable policy generator, and the predator, which
// hunts it by Bayesian belief updating over a learned transition model.
package agents

import (
	"math"
	"math/rand"

	"activeinference/grid_world"
)

// MovementPolicy produces a probability distribution over the 8 directions
// for a mover at pos. Implementations must return non-negative weights; the
// sampler normalizes.
type MovementPolicy interface {
	Distribution(pos grid_world.Position) map[grid_world.Direction]float64
}

// StaticPolicy assigns every cell a fixed random direction distribution at
// construction. The same cell always yields the same distribution, which
// is what makes the per-state count model learnable.
type StaticPolicy struct {
	weights map[grid_world.Position]map[grid_world.Direction]float64
}

// NewStaticPolicy draws a per-cell weighted direction sampler for a
// size x size grid.
func NewStaticPolicy(size int, rng *rand.Rand) *StaticPolicy {
	weights := make(map[grid_world.Position]map[grid_world.Direction]float64, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			cell := make(map[grid_world.Direction]float64, len(grid_world.Directions))
			total := 0.0
			for _, dir := range grid_world.Directions {
				w := rng.Float64()
				cell[dir] = w
				total += w
			}
			for dir := range cell {
				cell[dir] /= total
			}
			weights[grid_world.Position{X: x, Y: y}] = cell
		}
	}
	return &StaticPolicy{weights: weights}
}

// Distribution returns the fixed distribution for pos.
func (sp *StaticPolicy) Distribution(pos grid_world.Position) map[grid_world.Direction]float64 {
	return sp.weights[pos]
}

// FixedPolicy returns the same distribution at every cell. Used by lessons
// and tests that need a known per-state ground truth.
type FixedPolicy struct {
	dist map[grid_world.Direction]float64
}

// NewFixedPolicy normalizes and stores a single direction distribution.
func NewFixedPolicy(dist map[grid_world.Direction]float64) *FixedPolicy {
	total := 0.0
	for _, w := range dist {
		total += w
	}
	norm := make(map[grid_world.Direction]float64, len(dist))
	for dir, w := range dist {
		norm[dir] = w / total
	}
	return &FixedPolicy{dist: norm}
}

// Distribution returns the fixed distribution regardless of pos.
func (fp *FixedPolicy) Distribution(grid_world.Position) map[grid_world.Direction]float64 {
	return fp.dist
}

// ReactivePolicy weights directions by how far they move the prey from a
// tracked position, a soft flee. Sharpness controls how peaked the
// distribution is around the best escape direction.
type ReactivePolicy struct {
	grid      *grid_world.Grid
	tracked   grid_world.Entity
	sharpness float64
}

// NewReactivePolicy returns a flee-from-tracked policy.
func NewReactivePolicy(grid *grid_world.Grid, tracked grid_world.Entity, sharpness float64) *ReactivePolicy {
	if sharpness <= 0 {
		sharpness = 1
	}
	return &ReactivePolicy{grid: grid, tracked: tracked, sharpness: sharpness}
}

// Distribution exponentiates the per-direction change in Chebyshev distance
// from the tracked entity.
func (rp *ReactivePolicy) Distribution(pos grid_world.Position) map[grid_world.Direction]float64 {
	threat := rp.tracked.Position()
	cur := chebyshev(rp.grid.Delta(threat, pos))

	dist := make(map[grid_world.Direction]float64, len(grid_world.Directions))
	total := 0.0
	for _, dir := range grid_world.Directions {
		next := rp.grid.Normalize(grid_world.Position{X: pos.X + dir.DX, Y: pos.Y + dir.DY})
		gain := float64(chebyshev(rp.grid.Delta(threat, next)) - cur)
		w := math.Exp(rp.sharpness * gain)
		dist[dir] = w
		total += w
	}
	for dir := range dist {
		dist[dir] /= total
	}
	return dist
}

func chebyshev(d grid_world.Direction) int {
	ax, ay := d.DX, d.DY
	if ax < 0 {
		ax = -ax
	}
	if ay < 0 {
		ay = -ay
	}
	if ax > ay {
		return ax
	}
	return ay
}

// Prey is the hunted agent: each tick it samples one direction from its
// policy and steps, bouncing off walls by staying put.
type Prey struct {
	pos    grid_world.Position
	home   grid_world.Position
	policy MovementPolicy
	rng    *rand.Rand
}

// NewPrey places a prey at pos with the given movement policy.
func NewPrey(pos grid_world.Position, policy MovementPolicy, rng *rand.Rand) *Prey {
	return &Prey{pos: pos, home: pos, policy: policy, rng: rng}
}

// Tag identifies the prey on rendered state keys.
func (p *Prey) Tag() rune {
	return grid_world.HuntedTag
}

// Position returns the prey's current cell, by value.
func (p *Prey) Position() grid_world.Position {
	return p.pos
}

// SetPolicy swaps the movement-policy generator.
func (p *Prey) SetPolicy(policy MovementPolicy) {
	p.policy = policy
}

// Act samples a direction from the policy and moves.
func (p *Prey) Act(g *grid_world.Grid) {
	dir, ok := SampleDirection(p.rng, p.policy.Distribution(p.pos))
	if !ok {
		return
	}
	p.pos = g.NormalizeAvoidingWalls(
		grid_world.Position{X: p.pos.X + dir.DX, Y: p.pos.Y + dir.DY},
		p.pos)
}

// Perceive is a no-op; the prey's policy reads the world lazily in Act.
func (p *Prey) Perceive(*grid_world.Grid) {}

// Reset returns the prey to its starting cell.
func (p *Prey) Reset() {
	p.pos = p.home
}

// SampleDirection draws a direction proportionally to its weight. The draw
// walks the fixed Directions order (not map order) so results are
// reproducible under a seeded source. ok is false when total weight is zero.
func SampleDirection(
	rng *rand.Rand,
	dist map[grid_world.Direction]float64,
) (grid_world.Direction, bool) {
	total := 0.0
	for _, dir := range grid_world.Directions {
		total += dist[dir]
	}
	if total <= 0 {
		return grid_world.Direction{}, false
	}
	r := rng.Float64() * total
	for _, dir := range grid_world.Directions {
		r -= dist[dir]
		if r < 0 {
			return dir, true
		}
	}
	return grid_world.Directions[len(grid_world.Directions)-1], true
}
