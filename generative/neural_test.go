package generative

import (
	"math/rand"
	"testing"

	"activeinference/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestNeural(t *testing.T) (*Neural, *stubEntity, *grid_world.Grid) {
	t.Helper()

	grid, err := grid_world.NewGrid(4, grid_world.Toroidal)
	So(err, ShouldBeNil)
	prey := &stubEntity{tag: grid_world.HuntedTag, pos: grid_world.Position{X: 1, Y: 1}}
	cfg := NeuralConfig{
		HiddenDim:      8,
		FFDim:          16,
		LearningRate:   0.01,
		ReplayCapacity: 64,
		BatchSize:      4,
	}
	rng := rand.New(rand.NewSource(3))
	model, err := NewNeural(grid, prey, []grid_world.Entity{prey}, cfg, rng)
	So(err, ShouldBeNil)
	return model, prey, grid
}

func TestNeuralConstruction(t *testing.T) {
	Convey("When the learned model is constructed", t, func() {
		grid, _ := grid_world.NewGrid(4, grid_world.Toroidal)
		prey := &stubEntity{tag: grid_world.HuntedTag, pos: grid_world.Position{}}
		rng := rand.New(rand.NewSource(1))

		Convey("Hidden dims not divisible by 4 are rejected", func() {
			_, err := NewNeural(grid, prey, []grid_world.Entity{prey}, NeuralConfig{HiddenDim: 10}, rng)
			So(err, ShouldNotBeNil)
		})

		Convey("The tracked set must include the hunted entity", func() {
			other := &stubEntity{tag: grid_world.PredatorTag, pos: grid_world.Position{X: 2, Y: 2}}
			_, err := NewNeural(grid, prey, []grid_world.Entity{other}, NeuralConfig{}, rng)
			So(err, ShouldNotBeNil)
		})

		Convey("Zero config fields fall back to defaults", func() {
			model, err := NewNeural(grid, prey, []grid_world.Entity{prey}, NeuralConfig{}, rng)
			So(err, ShouldBeNil)
			So(model.cfg.HiddenDim, ShouldEqual, 32)
			So(model.cfg.FFDim, ShouldEqual, 64)
			So(model.cfg.BatchSize, ShouldEqual, 16)
		})
	})
}

func TestNeuralForward(t *testing.T) {
	Convey("When the network runs forward", t, func() {
		model, prey, grid := newTestNeural(t)

		Convey("The output is a distribution over all cells", func() {
			probs := model.net.forward(model.snapshot(), nil)
			So(len(probs), ShouldEqual, grid.Size()*grid.Size())

			sum := 0.0
			for _, p := range probs {
				So(p, ShouldBeGreaterThanOrEqualTo, 0)
				sum += p
			}
			So(sum, ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("The token snapshot places entities and walls", func() {
			So(grid.AddWall(grid_world.Position{X: 3, Y: 0}), ShouldBeNil)
			tokens := model.Snapshot()
			So(tokens[1*grid.Size()+1], ShouldEqual, tokenHunted)
			So(tokens[0*grid.Size()+3], ShouldEqual, tokenWall)
			So(tokens[0], ShouldEqual, tokenEmpty)
			_ = prey
		})
	})
}

func TestNeuralTraining(t *testing.T) {
	Convey("When the model trains on a repeated transition", t, func() {
		Convey("Cross-entropy against the target decreases", func() {
			model, _, grid := newTestNeural(t)
			tokens := model.snapshot()
			target := 2*grid.Size() + 1

			before := model.Loss(tokens, target)
			for i := 0; i < 200; i++ {
				model.trainBatch([]Transition{{Tokens: tokens, Target: target}})
			}
			after := model.Loss(tokens, target)

			So(after, ShouldBeLessThan, before)
		})

		Convey("Updates feed the replay buffer and expose a direction distribution", func() {
			model, prey, grid := newTestNeural(t)
			rng := rand.New(rand.NewSource(9))

			So(model.MovementProbabilities(), ShouldBeEmpty)

			for i := 0; i < 20; i++ {
				model.Update(prey)
				dir := grid_world.Directions[rng.Intn(len(grid_world.Directions))]
				prey.pos = grid.Normalize(grid_world.Position{
					X: prey.pos.X + dir.DX,
					Y: prey.pos.Y + dir.DY,
				})
			}

			So(model.buf.Len(), ShouldBeGreaterThan, 0)
			probs := model.MovementProbabilities()
			So(len(probs), ShouldEqual, 8)
			sum := 0.0
			for _, p := range probs {
				sum += p
			}
			So(sum, ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("A perception gap drops the unobserved transition", func() {
			model, prey, grid := newTestNeural(t)

			model.Update(prey)
			prey.pos = grid_world.Position{X: 2, Y: 1}
			model.Update(prey)
			So(model.buf.Len(), ShouldEqual, 1)

			model.Update(nil)
			prey.pos = grid_world.Position{X: 3, Y: 2}
			model.Update(prey)
			So(model.buf.Len(), ShouldEqual, 1)
			_ = grid
		})
	})
}

func TestNeuralReset(t *testing.T) {
	Convey("When the model is reset", t, func() {
		Convey("Buffer, tracking and predictions are all discarded", func() {
			model, prey, grid := newTestNeural(t)

			for i := 0; i < 10; i++ {
				model.Update(prey)
				prey.pos = grid.Normalize(grid_world.Position{X: prey.pos.X + 1, Y: prey.pos.Y})
			}
			So(model.buf.Len(), ShouldBeGreaterThan, 0)
			So(model.MovementProbabilities(), ShouldNotBeEmpty)

			model.Reset()

			So(model.buf.Len(), ShouldEqual, 0)
			So(model.hasLast, ShouldBeFalse)
			So(model.MovementProbabilities(), ShouldBeEmpty)
		})
	})
}
