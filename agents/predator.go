package agents

import (
	"errors"
	"math/rand"

	"activeinference/generative"
	"activeinference/grid_world"
)

// FullVision makes the perceived set the whole grid.
const FullVision = -1

// beliefEps is the tolerance on the belief-sums-to-one invariant.
const beliefEps = 1e-9

// ErrNotDirichlet is returned when a state-key recomposition is requested
// while a non-tabular model is installed.
var ErrNotDirichlet = errors.New("state-key composition applies only to the dirichlet model")

// Predator hunts the prey by maintaining a belief grid (a probability
// distribution over where the hunted agent is next) and a pluggable
// transition model of the prey's movement. Each tick it samples a target
// cell from belief and takes one greedy step toward it; each perception it
// folds what it saw (or didn't see) back into belief.
type Predator struct {
	grid   *grid_world.Grid
	hunted grid_world.Entity
	model  generative.Model
	rng    *rand.Rand

	pos  grid_world.Position
	home grid_world.Position

	// belief[y][x]; owned exclusively by this predator, mutated only by
	// its own perception step.
	belief      [][]float64
	visionRange int
	visible     []grid_world.Position
}

// NewPredator places a predator at pos hunting the given entity through
// the given transition model. visionRange is a Chebyshev radius;
// FullVision perceives the whole grid.
func NewPredator(
	grid *grid_world.Grid,
	hunted grid_world.Entity,
	model generative.Model,
	pos grid_world.Position,
	visionRange int,
	rng *rand.Rand,
) (*Predator, error) {
	if hunted == nil {
		return nil, errors.New("predator requires a hunted entity")
	}
	if model == nil {
		return nil, errors.New("predator requires a transition model")
	}
	p := &Predator{
		grid:        grid,
		hunted:      hunted,
		model:       model,
		rng:         rng,
		pos:         grid.Normalize(pos),
		home:        grid.Normalize(pos),
		visionRange: visionRange,
	}
	p.belief = newGrid(grid.Size())
	p.uniformBelief()
	return p, nil
}

// Tag identifies the predator on rendered state keys.
func (p *Predator) Tag() rune {
	return grid_world.PredatorTag
}

// Position returns the predator's current cell, by value.
func (p *Predator) Position() grid_world.Position {
	return p.pos
}

// Model returns the installed transition model.
func (p *Predator) Model() generative.Model {
	return p.model
}

// Act samples a target cell proportional to belief mass and moves one step
// toward it: per-axis sign of the displacement, wall cells bounced off by
// staying put. Zero total belief means no information and no move.
func (p *Predator) Act(g *grid_world.Grid) {
	target, ok := p.sampleTarget()
	if !ok {
		return
	}
	step := g.StepToward(p.pos, target)
	p.pos = g.NormalizeAvoidingWalls(
		grid_world.Position{X: p.pos.X + step.DX, Y: p.pos.Y + step.DY},
		p.pos)
}

// Perceive runs the full observation-and-belief-update cycle.
func (p *Predator) Perceive(g *grid_world.Grid) {
	p.Observe(g, true)
}

// Observe computes the set of cells within vision range and, when
// updateBelief is set, runs the matching belief-update branch. It returns
// the perceived set. Positions are never mutated here; the only side
// effects are on belief and on the transition model's training state.
func (p *Predator) Observe(g *grid_world.Grid, updateBelief bool) []grid_world.Position {
	visible := p.visionCells(g)
	p.visible = visible
	if !updateBelief {
		return visible
	}

	huntedPos := g.Normalize(p.hunted.Position())
	seen := false
	for _, cell := range visible {
		if cell == huntedPos {
			seen = true
			break
		}
	}
	if seen {
		p.observedUpdate(g, huntedPos)
	} else {
		p.unobservedUpdate(g, visible)
	}
	return visible
}

// visionCells is the Chebyshev box of radius visionRange around the
// predator, boundary-normalized and deduplicated.
func (p *Predator) visionCells(g *grid_world.Grid) []grid_world.Position {
	size := g.Size()
	r := p.visionRange
	if r == FullVision || r >= size {
		cells := make([]grid_world.Position, 0, size*size)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				cells = append(cells, grid_world.Position{X: x, Y: y})
			}
		}
		return cells
	}

	seen := map[grid_world.Position]bool{}
	cells := []grid_world.Position{}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			cell := g.Normalize(grid_world.Position{X: p.pos.X + dx, Y: p.pos.Y + dy})
			if !seen[cell] {
				seen[cell] = true
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

// observedUpdate handles the "hunted in view" branch: belief collapses to
// the model's one-step prediction from the observed position. Directions
// that alias to the same cell under boundary normalization have their mass
// summed, not overwritten.
func (p *Predator) observedUpdate(g *grid_world.Grid, huntedPos grid_world.Position) {
	p.zeroBelief()
	p.model.Update(p.hunted)

	probs := p.model.MovementProbabilities()
	if len(probs) == 0 {
		// No information recorded yet: predict a uniform step.
		probs = generative.UniformDirections()
	}
	for _, dir := range stableDirections(probs) {
		mass := probs[dir]
		if mass <= 0 {
			continue
		}
		// Same bounce rule the prey moves under: a walled target keeps
		// the mass at the source cell.
		tgt := g.NormalizeAvoidingWalls(grid_world.Position{
			X: huntedPos.X + dir.DX,
			Y: huntedPos.Y + dir.DY,
		}, huntedPos)
		p.belief[tgt.Y][tgt.X] += mass
	}
	p.normalizeBelief()
}

// unobservedUpdate handles the perception-gap branch: rule out the empty
// perceived cells, renormalize, then propagate the surviving mass one step
// forward under the transition kernel.
func (p *Predator) unobservedUpdate(g *grid_world.Grid, visible []grid_world.Position) {
	p.model.Update(nil)

	// "Not there" is informative.
	for _, cell := range visible {
		p.belief[cell.Y][cell.X] = 0
	}
	p.normalizeBelief()

	probs := p.model.MovementProbabilities()
	if len(probs) == 0 {
		probs = generative.UniformDirections()
	}
	dirs := stableDirections(probs)

	size := g.Size()
	next := newGrid(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			mass := p.belief[y][x]
			if mass <= 0 {
				continue
			}
			src := grid_world.Position{X: x, Y: y}
			for _, dir := range dirs {
				tgt := g.NormalizeAvoidingWalls(
					grid_world.Position{X: x + dir.DX, Y: y + dir.DY}, src)
				next[tgt.Y][tgt.X] += mass * probs[dir]
			}
		}
	}
	p.belief = next
	p.normalizeBelief()
}

// stableDirections orders the distribution's keys deterministically: the
// stay offset first (the count model records it when the prey bounces),
// then the fixed 8-neighborhood. Other offsets never arise from one-step
// movement and are ignored.
func stableDirections(probs map[grid_world.Direction]float64) []grid_world.Direction {
	dirs := make([]grid_world.Direction, 0, len(grid_world.Directions)+1)
	if _, ok := probs[grid_world.Direction{}]; ok {
		dirs = append(dirs, grid_world.Direction{})
	}
	for _, dir := range grid_world.Directions {
		if _, ok := probs[dir]; ok {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// sampleTarget draws a cell proportional to belief mass, walking cells in
// row-major order for reproducibility under a seeded source.
func (p *Predator) sampleTarget() (grid_world.Position, bool) {
	total := 0.0
	for _, row := range p.belief {
		for _, mass := range row {
			total += mass
		}
	}
	if total <= 0 {
		return grid_world.Position{}, false
	}

	r := p.rng.Float64() * total
	for y, row := range p.belief {
		for x, mass := range row {
			r -= mass
			if r < 0 {
				return grid_world.Position{X: x, Y: y}, true
			}
		}
	}
	return grid_world.Position{X: len(p.belief[0]) - 1, Y: len(p.belief) - 1}, true
}

// Belief returns a defensive copy of the belief grid; belief mutates in
// place on the next perception.
func (p *Predator) Belief() [][]float64 {
	out := make([][]float64, len(p.belief))
	for y, row := range p.belief {
		out[y] = make([]float64, len(row))
		copy(out[y], row)
	}
	return out
}

// SetBelief overwrites the belief grid with a copy of b, normalizing it.
// Exposed for lesson scaffolds and tests that fix belief directly.
func (p *Predator) SetBelief(b [][]float64) error {
	if len(b) != p.grid.Size() {
		return errors.New("belief grid size mismatch")
	}
	for y, row := range b {
		if len(row) != p.grid.Size() {
			return errors.New("belief grid size mismatch")
		}
		copy(p.belief[y], row)
	}
	p.normalizeBelief()
	return nil
}

// VisionMask returns a copy of the most recently perceived cell set.
func (p *Predator) VisionMask() []grid_world.Position {
	out := make([]grid_world.Position, len(p.visible))
	copy(out, p.visible)
	return out
}

// ModelGrid returns the transition model's position-probability grid, or
// nil for models that do not expose one.
func (p *Predator) ModelGrid() [][]float64 {
	if pg, ok := p.model.(generative.PositionGridder); ok {
		return pg.PositionGrid()
	}
	return nil
}

// SetVisionRange reconfigures the perception radius.
func (p *Predator) SetVisionRange(r int) {
	p.visionRange = r
}

// SetModel hot-swaps the transition-model strategy. Belief returns to
// uniform: the new model's predictions share no lineage with the old ones.
func (p *Predator) SetModel(m generative.Model) error {
	if m == nil {
		return errors.New("nil transition model")
	}
	p.model = m
	p.uniformBelief()
	return nil
}

// SetStateItems rebuilds the installed Dirichlet model with a new
// state-key composition, discarding its prior learning.
func (p *Predator) SetStateItems(items ...grid_world.Entity) error {
	if _, ok := p.model.(*generative.Dirichlet); !ok {
		return ErrNotDirichlet
	}
	m, err := generative.NewDirichlet(p.grid, items...)
	if err != nil {
		return err
	}
	p.model = m
	p.uniformBelief()
	return nil
}

// Reset reinitializes belief to uniform, resets the model wholesale and
// returns the predator to its starting cell.
func (p *Predator) Reset() {
	p.pos = p.home
	p.visible = nil
	p.model.Reset()
	p.uniformBelief()
}

func (p *Predator) zeroBelief() {
	for y := range p.belief {
		for x := range p.belief[y] {
			p.belief[y][x] = 0
		}
	}
}

// uniformBelief spreads mass evenly over non-wall cells. This is also the
// documented recovery when an update empties the grid entirely.
func (p *Predator) uniformBelief() {
	size := p.grid.Size()
	open := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !p.grid.IsWall(grid_world.Position{X: x, Y: y}) {
				open++
			}
		}
	}
	mass := 1.0 / float64(open)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if p.grid.IsWall(grid_world.Position{X: x, Y: y}) {
				p.belief[y][x] = 0
			} else {
				p.belief[y][x] = mass
			}
		}
	}
}

// normalizeBelief rescales belief to sum to one. An all-zero grid means
// every hypothesis was ruled out; rather than leave the sampler with
// nothing, belief falls back to uniform.
func (p *Predator) normalizeBelief() {
	total := 0.0
	for _, row := range p.belief {
		for _, mass := range row {
			total += mass
		}
	}
	if total <= beliefEps {
		p.uniformBelief()
		return
	}
	for y := range p.belief {
		for x := range p.belief[y] {
			p.belief[y][x] /= total
		}
	}
}

func newGrid(size int) [][]float64 {
	g := make([][]float64, size)
	for y := range g {
		g[y] = make([]float64, size)
	}
	return g
}
