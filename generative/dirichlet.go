package generative

import (
	"fmt"

	"activeinference/grid_world"
)

// MaxTabularStates bounds the state space a count table may be asked to
// cover. Requesting a composition beyond this is a configuration error
// surfaced at construction, not a silent degradation at runtime.
const MaxTabularStates = 1 << 20

// Dirichlet is the count-based Bayesian transition model: a mapping from
// rendered state key to per-direction transition counts, with a uniform
// pseudo-count prior of 1 per direction on a state's first touch. Counts
// grow without bound over distinct observed states and are only discarded
// wholesale on Reset.
type Dirichlet struct {
	grid       *grid_world.Grid
	stateItems []grid_world.Entity
	counts     map[string]map[grid_world.Direction]int
	lastKey    string
	lastPos    grid_world.Position
	hasLast    bool
}

// NewDirichlet returns a count-table model whose state key is rendered from
// the passed tracked entities, in order. The composition must be tabularly
// feasible for the grid: (size^2)^len(items) distinct keys at most.
func NewDirichlet(grid *grid_world.Grid, stateItems ...grid_world.Entity) (*Dirichlet, error) {
	if len(stateItems) == 0 {
		return nil, fmt.Errorf("dirichlet model requires at least one tracked entity")
	}
	if StateSpaceSize(grid.Size(), len(stateItems)) > MaxTabularStates {
		return nil, fmt.Errorf(
			"state space for %d tracked entities on a %dx%d grid exceeds tabular capacity %d",
			len(stateItems), grid.Size(), grid.Size(), MaxTabularStates)
	}
	return &Dirichlet{
		grid:       grid,
		stateItems: stateItems,
		counts:     map[string]map[grid_world.Direction]int{},
	}, nil
}

// StateSpaceSize is the number of distinct state keys a composition of n
// tracked entities can render on a size x size grid, saturating at
// MaxTabularStates+1 to avoid overflow.
func StateSpaceSize(size, n int) int {
	cells := size * size
	total := 1
	for i := 0; i < n; i++ {
		if total > MaxTabularStates/cells {
			return MaxTabularStates + 1
		}
		total *= cells
	}
	return total
}

// Update observes the hunted entity, attributing the movement since the
// previous observation to the previously recorded state. A nil observation
// (perception gap) clears only the last-position tracking: the counts
// survive, but the next observed transition has no source state and is
// deliberately dropped from training rather than falsely attributed.
func (d *Dirichlet) Update(observed grid_world.Entity) {
	if observed == nil {
		d.hasLast = false
		d.lastKey = ""
		return
	}

	key := d.grid.StateKey(d.stateItems...)
	pos := observed.Position()
	if d.hasLast {
		dir := d.grid.Delta(d.lastPos, pos)
		row, ok := d.counts[d.lastKey]
		if !ok {
			// Laplace prior: one pseudo-count per direction at first touch.
			row = make(map[grid_world.Direction]int, len(grid_world.Directions))
			for _, prior := range grid_world.Directions {
				row[prior] = 1
			}
			d.counts[d.lastKey] = row
		}
		row[dir]++
	}

	d.lastKey = key
	d.lastPos = pos
	d.hasLast = true
}

// MovementProbabilities normalizes the counts at the state key recorded by
// the most recent Update. The key is the one captured at update time, not
// re-rendered at call time: by the time the predator acts, positions have
// already changed. Empty map when no state is recorded or the recorded
// state has never sourced a transition.
func (d *Dirichlet) MovementProbabilities() map[grid_world.Direction]float64 {
	probs := map[grid_world.Direction]float64{}
	if !d.hasLast {
		return probs
	}
	row, ok := d.counts[d.lastKey]
	if !ok {
		return probs
	}

	total := 0
	for _, c := range row {
		total += c
	}
	for dir, c := range row {
		probs[dir] = float64(c) / float64(total)
	}
	return probs
}

// PositionGrid renders the recorded state's direction distribution as a
// position-probability grid centered on the last observed position, for
// the renderer's learned-model heatmap.
func (d *Dirichlet) PositionGrid() [][]float64 {
	size := d.grid.Size()
	out := make([][]float64, size)
	for y := range out {
		out[y] = make([]float64, size)
	}
	for dir, p := range d.MovementProbabilities() {
		tgt := d.grid.Normalize(grid_world.Position{
			X: d.lastPos.X + dir.DX,
			Y: d.lastPos.Y + dir.DY,
		})
		out[tgt.Y][tgt.X] += p
	}
	return out
}

// KnownStates is the number of distinct states that have sourced at least
// one observed transition. Together with StateSpaceSize this exposes the
// coverage fraction the state-space-explosion lesson is built around.
func (d *Dirichlet) KnownStates() int {
	return len(d.counts)
}

// Reset clears all counts and tracking.
func (d *Dirichlet) Reset() {
	d.counts = map[string]map[grid_world.Direction]int{}
	d.lastKey = ""
	d.hasLast = false
}
