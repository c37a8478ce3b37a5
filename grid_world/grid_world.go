// grid_world implements the bounded 2D world the lesson agents live in:
// a square grid with optional wall cells, an ordered agent registry, and a
// cooperative step loop in which every agent acts before any agent perceives.
// The grid also owns the two pieces of arithmetic everything else depends on:
// boundary normalization (clamped or toroidal) and the rendered state-key
// strings used to index per-state learned behavior.
package grid_world

import (
	"fmt"
	"strings"
)

// Cell tags, used both for rendering the grid as a string and as the
// token classes of the learned transition model.
const (
	EmptyTag    = '.'
	WallTag     = 'W'
	HuntedTag   = 'h'
	PredatorTag = 'P'
)

// BoundaryMode selects how out-of-range positions are folded back onto the grid.
type BoundaryMode int

const (
	// Clamped pins coordinates to the grid edges.
	Clamped BoundaryMode = iota
	// Toroidal wraps coordinates around the opposite edge.
	Toroidal
)

// Position is an integer grid coordinate. It is a value type and is copied
// at every assignment; no code should ever share a mutable position.
type Position struct {
	X, Y int
}

// Direction is a unit offset between adjacent cells. Directions are value
// types usable directly as map keys, so transition counts never pass
// through a stringified intermediate.
type Direction struct {
	DX, DY int
}

// Directions is the fixed 8-neighborhood, in stable clockwise order from north.
var Directions = [8]Direction{
	{0, -1},  // N
	{1, -1},  // NE
	{1, 0},   // E
	{1, 1},   // SE
	{0, 1},   // S
	{-1, 1},  // SW
	{-1, 0},  // W
	{-1, -1}, // NW
}

// Entity is anything the grid can render and the models can track: it has a
// fixed role tag and a current position.
type Entity interface {
	Tag() rune
	Position() Position
}

// Agent is an entity driven by the step loop. Act and Perceive are the two
// phases of a tick; Perceive must not move the agent.
type Agent interface {
	Entity
	Act(g *Grid)
	Perceive(g *Grid)
}

// Grid is the world: size, boundary rule, walls, and the ordered registry
// of agents stepped each tick.
type Grid struct {
	size     int
	boundary BoundaryMode
	walls    map[Position]bool
	agents   []Agent
	tick     int
}

// NewGrid returns a grid of the given size with no walls.
func NewGrid(size int, boundary BoundaryMode) (*Grid, error) {
	if size < 2 {
		return nil, fmt.Errorf("grid size must be at least 2, got %d", size)
	}
	return &Grid{
		size:     size,
		boundary: boundary,
		walls:    map[Position]bool{},
	}, nil
}

// Size returns the grid's side length.
func (g *Grid) Size() int {
	return g.size
}

// Boundary returns the grid's boundary mode.
func (g *Grid) Boundary() BoundaryMode {
	return g.boundary
}

// AddWall marks a cell as impassable. Walls are part of the rendered state key.
func (g *Grid) AddWall(pos Position) error {
	if !g.inBounds(pos) {
		return fmt.Errorf("wall %v outside %dx%d grid", pos, g.size, g.size)
	}
	g.walls[pos] = true
	return nil
}

// IsWall reports whether the cell at pos is a wall.
func (g *Grid) IsWall(pos Position) bool {
	return g.walls[pos]
}

// Walls returns a copy of the wall set.
func (g *Grid) Walls() []Position {
	walls := make([]Position, 0, len(g.walls))
	for y := 0; y < g.size; y++ {
		for x := 0; x < g.size; x++ {
			if g.walls[Position{X: x, Y: y}] {
				walls = append(walls, Position{X: x, Y: y})
			}
		}
	}
	return walls
}

// Register appends an agent to the step registry. Registration order is the
// phase-execution order and must be stable for state keys to be stable.
func (g *Grid) Register(a Agent) {
	g.agents = append(g.agents, a)
}

// Agents returns the registry in registration order.
func (g *Grid) Agents() []Agent {
	return g.agents
}

// Tick returns the number of completed steps.
func (g *Grid) Tick() int {
	return g.tick
}

// Step executes one cooperative tick: every agent's act phase in
// registration order, then every agent's perceive phase. Perception is a
// separate pass so that no agent observes a same-tick action before its
// own perception runs.
func (g *Grid) Step() {
	for _, a := range g.agents {
		a.Act(g)
	}
	for _, a := range g.agents {
		a.Perceive(g)
	}
	g.tick++
}

func (g *Grid) inBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < g.size && pos.Y >= 0 && pos.Y < g.size
}

// Normalize folds pos back onto the grid per the boundary mode.
func (g *Grid) Normalize(pos Position) Position {
	switch g.boundary {
	case Toroidal:
		pos.X = ((pos.X % g.size) + g.size) % g.size
		pos.Y = ((pos.Y % g.size) + g.size) % g.size
	default:
		pos.X = clamp(pos.X, 0, g.size-1)
		pos.Y = clamp(pos.Y, 0, g.size-1)
	}
	return pos
}

// NormalizeAvoidingWalls normalizes pos, returning fallback if the
// normalized cell is a wall. The fallback is what lets a mover "bounce" by
// staying put rather than entering an impassable cell.
func (g *Grid) NormalizeAvoidingWalls(pos, fallback Position) Position {
	norm := g.Normalize(pos)
	if g.walls[norm] {
		return fallback
	}
	return norm
}

// Delta returns the per-axis offset from one position to the next under the
// grid's own normalization rule. On a toroidal grid the minimal wrapped
// displacement is used, so a one-step move across the seam yields a unit
// delta, matching what Normalize produced for the move itself.
func (g *Grid) Delta(from, to Position) Direction {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if g.boundary == Toroidal {
		dx = wrapDelta(dx, g.size)
		dy = wrapDelta(dy, g.size)
	}
	return Direction{DX: dx, DY: dy}
}

// StepToward returns the unit step from cur toward target: the per-axis
// sign of the boundary-aware displacement. Zero means cur == target.
func (g *Grid) StepToward(cur, target Position) Direction {
	d := g.Delta(cur, target)
	return Direction{DX: sign(d.DX), DY: sign(d.DY)}
}

// StateKey renders the grid as a string with the passed entities placed on
// it, in order. Two physical configurations are the same state iff their
// rendered strings are identical, so the rendering must be deterministic:
// walls come from the grid, entity tags are written in argument order
// (later entities overwrite earlier ones on the same cell).
func (g *Grid) StateKey(entities ...Entity) string {
	rows := make([][]rune, g.size)
	for y := 0; y < g.size; y++ {
		rows[y] = make([]rune, g.size)
		for x := 0; x < g.size; x++ {
			if g.walls[Position{X: x, Y: y}] {
				rows[y][x] = WallTag
			} else {
				rows[y][x] = EmptyTag
			}
		}
	}
	for _, e := range entities {
		pos := g.Normalize(e.Position())
		rows[pos.Y][pos.X] = e.Tag()
	}

	var sb strings.Builder
	sb.Grow(g.size * (g.size + 1))
	for y := 0; y < g.size; y++ {
		sb.WriteString(string(rows[y]))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapDelta(d, size int) int {
	if d > size/2 {
		d -= size
	} else if d < -(size / 2) {
		d += size
	}
	return d
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
