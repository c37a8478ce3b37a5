// lessons wires the grid, agents and transition models into the numbered
// teaching sequence: each lesson adds one concept over the previous, from
// a blind uniform predictor through the tabular explosion to the learned
// transition model over obstacles.
package lessons

import (
	"fmt"
	"math/rand"

	"activeinference/agents"
	"activeinference/generative"
	"activeinference/grid_world"
)

// ModelKind selects the predator's transition-model strategy.
type ModelKind string

const (
	ModelUniform        ModelKind = "uniform"
	ModelDirichlet      ModelKind = "dirichlet"
	ModelDirichletJoint ModelKind = "dirichletJoint"
	ModelNeural         ModelKind = "neural"
)

// Lesson describes one configuration of the simulation.
type Lesson struct {
	Number       int
	Title        string
	GridSize     int
	Boundary     grid_world.BoundaryMode
	Walls        []grid_world.Position
	VisionRange  int
	Model        ModelKind
	ReactivePrey bool
}

// Catalog is the teaching sequence.
var Catalog = []Lesson{
	{
		Number: 1, Title: "A wandering world",
		GridSize: 8, Boundary: grid_world.Toroidal,
		VisionRange: agents.FullVision, Model: ModelUniform,
	},
	{
		Number: 2, Title: "Belief and sampling",
		GridSize: 8, Boundary: grid_world.Toroidal,
		VisionRange: agents.FullVision, Model: ModelUniform,
	},
	{
		Number: 3, Title: "Counting transitions",
		GridSize: 8, Boundary: grid_world.Toroidal,
		VisionRange: agents.FullVision, Model: ModelDirichlet,
	},
	{
		Number: 4, Title: "The joint-state explosion",
		GridSize: 8, Boundary: grid_world.Toroidal,
		VisionRange: 2, Model: ModelDirichletJoint, ReactivePrey: true,
	},
	{
		Number: 5, Title: "A learned world model",
		GridSize: 8, Boundary: grid_world.Toroidal,
		VisionRange: 2, Model: ModelNeural, ReactivePrey: true,
	},
	{
		Number: 6, Title: "Obstacles",
		GridSize: 8, Boundary: grid_world.Clamped,
		Walls: []grid_world.Position{
			{X: 4, Y: 2}, {X: 4, Y: 3}, {X: 4, Y: 4}, {X: 4, Y: 5},
		},
		VisionRange: 2, Model: ModelNeural, ReactivePrey: true,
	},
}

// Get returns the lesson with the given number.
func Get(number int) (Lesson, error) {
	for _, l := range Catalog {
		if l.Number == number {
			return l, nil
		}
	}
	return Lesson{}, fmt.Errorf("no lesson %d (have 1..%d)", number, len(Catalog))
}

// Build assembles the lesson's grid, prey and predator. Config overrides
// the grid geometry and supplies learning hyper-parameters; rng seeds all
// stochastic behavior.
func Build(lesson Lesson, cfg *SimConfig, rng *rand.Rand) (*Sim, error) {
	size := lesson.GridSize
	if cfg != nil {
		if override := cfg.GridSizeOverride(); override > 0 {
			size = override
		}
	}
	boundary := lesson.Boundary
	if cfg != nil {
		if mode, ok := cfg.BoundaryOverride(); ok {
			boundary = mode
		}
	}

	grid, err := grid_world.NewGrid(size, boundary)
	if err != nil {
		return nil, err
	}
	for _, wall := range lesson.Walls {
		if err := grid.AddWall(wall); err != nil {
			return nil, err
		}
	}

	// Prey starts in the upper-left quadrant, predator in the lower-right.
	prey := agents.NewPrey(
		grid_world.Position{X: size / 4, Y: size / 4},
		agents.NewStaticPolicy(size, rng),
		rng)

	model, err := buildModel(lesson, cfg, grid, prey, rng)
	if err != nil {
		return nil, err
	}

	predator, err := agents.NewPredator(
		grid,
		prey,
		model,
		grid_world.Position{X: 3 * size / 4, Y: 3 * size / 4},
		lesson.VisionRange,
		rng)
	if err != nil {
		return nil, err
	}
	if lesson.ReactivePrey {
		sharpness := 1.0
		if cfg != nil {
			sharpness = cfg.GetHyperParamOrDefault("fleeSharpness", 1.0)
		}
		prey.SetPolicy(agents.NewReactivePolicy(grid, predator, sharpness))
	}

	// Neural models track both roles; rebuild now that the predator exists.
	if lesson.Model == ModelNeural {
		neural, err := generative.NewNeural(
			grid, prey,
			[]grid_world.Entity{prey, predator},
			neuralConfig(cfg),
			rng)
		if err != nil {
			return nil, err
		}
		if err := predator.SetModel(neural); err != nil {
			return nil, err
		}
	}
	if lesson.Model == ModelDirichletJoint {
		if err := predator.SetStateItems(prey, predator); err != nil {
			return nil, err
		}
	}

	grid.Register(prey)
	grid.Register(predator)

	return &Sim{
		Lesson:   lesson,
		Grid:     grid,
		Prey:     prey,
		Predator: predator,
	}, nil
}

// buildModel constructs the lesson's initial transition model. Joint and
// neural compositions that need the predator entity start from a
// prey-keyed stand-in and are recomposed in Build once the predator
// exists.
func buildModel(
	lesson Lesson,
	cfg *SimConfig,
	grid *grid_world.Grid,
	prey *agents.Prey,
	rng *rand.Rand,
) (generative.Model, error) {
	switch lesson.Model {
	case ModelUniform:
		return generative.NewUniform(), nil
	case ModelDirichlet, ModelDirichletJoint:
		return generative.NewDirichlet(grid, prey)
	case ModelNeural:
		return generative.NewDirichlet(grid, prey)
	}
	return nil, fmt.Errorf("unknown model kind %q", lesson.Model)
}

func neuralConfig(cfg *SimConfig) generative.NeuralConfig {
	if cfg == nil {
		return generative.NeuralConfig{}
	}
	return generative.NeuralConfig{
		HiddenDim:      int(cfg.GetHyperParamOrDefault("hiddenDim", 0)),
		FFDim:          int(cfg.GetHyperParamOrDefault("ffDim", 0)),
		LearningRate:   cfg.GetHyperParamOrDefault("learningRate", 0),
		ReplayCapacity: int(cfg.GetHyperParamOrDefault("replayCapacity", 0)),
		BatchSize:      int(cfg.GetHyperParamOrDefault("batchSize", 0)),
	}
}
