package agents

import (
	"math/rand"
	"testing"

	"activeinference/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSampleDirection(t *testing.T) {
	Convey("When directions are sampled from a weighted distribution", t, func() {
		east := grid_world.Direction{DX: 1, DY: 0}
		south := grid_world.Direction{DX: 0, DY: 1}

		Convey("The same seed always yields the same draw sequence", func() {
			dist := map[grid_world.Direction]float64{east: 0.7, south: 0.3}

			draw := func() []grid_world.Direction {
				rng := rand.New(rand.NewSource(42))
				out := make([]grid_world.Direction, 20)
				for i := range out {
					out[i], _ = SampleDirection(rng, dist)
				}
				return out
			}

			So(draw(), ShouldResemble, draw())
		})

		Convey("Only positively weighted directions are drawn", func() {
			dist := map[grid_world.Direction]float64{east: 1.0}
			rng := rand.New(rand.NewSource(1))
			for i := 0; i < 50; i++ {
				dir, ok := SampleDirection(rng, dist)
				So(ok, ShouldBeTrue)
				So(dir, ShouldResemble, east)
			}
		})

		Convey("Zero total weight reports no draw", func() {
			rng := rand.New(rand.NewSource(1))
			_, ok := SampleDirection(rng, map[grid_world.Direction]float64{})
			So(ok, ShouldBeFalse)
		})

		Convey("Draw frequencies track the weights", func() {
			dist := map[grid_world.Direction]float64{east: 0.8, south: 0.2}
			rng := rand.New(rand.NewSource(5))
			eastCount := 0
			trials := 5000
			for i := 0; i < trials; i++ {
				if dir, _ := SampleDirection(rng, dist); dir == east {
					eastCount++
				}
			}
			frac := float64(eastCount) / float64(trials)
			So(frac, ShouldBeGreaterThan, 0.75)
			So(frac, ShouldBeLessThan, 0.85)
		})
	})
}

func TestPreyMovement(t *testing.T) {
	Convey("When the prey acts", t, func() {
		Convey("It bounces off walls by staying put", func() {
			g, _ := grid_world.NewGrid(4, grid_world.Clamped)
			So(g.AddWall(grid_world.Position{X: 2, Y: 1}), ShouldBeNil)

			east := grid_world.Direction{DX: 1, DY: 0}
			prey := NewPrey(
				grid_world.Position{X: 1, Y: 1},
				NewFixedPolicy(map[grid_world.Direction]float64{east: 1.0}),
				rand.New(rand.NewSource(1)))

			prey.Act(g)
			So(prey.Position(), ShouldResemble, grid_world.Position{X: 1, Y: 1})
		})

		Convey("Reset returns it home", func() {
			g, _ := grid_world.NewGrid(6, grid_world.Toroidal)
			home := grid_world.Position{X: 2, Y: 2}
			prey := NewPrey(home, NewStaticPolicy(6, rand.New(rand.NewSource(2))), rand.New(rand.NewSource(3)))

			for i := 0; i < 10; i++ {
				prey.Act(g)
			}
			prey.Reset()
			So(prey.Position(), ShouldResemble, home)
		})
	})
}

func TestReactivePolicy(t *testing.T) {
	Convey("When the prey flees a tracked threat", t, func() {
		Convey("Escape directions outweigh approach directions", func() {
			g, _ := grid_world.NewGrid(8, grid_world.Clamped)
			threat := &fixedEntity{tag: grid_world.PredatorTag, pos: grid_world.Position{X: 1, Y: 4}}
			policy := NewReactivePolicy(g, threat, 1.5)

			dist := policy.Distribution(grid_world.Position{X: 4, Y: 4})
			east := dist[grid_world.Direction{DX: 1, DY: 0}]  // away
			west := dist[grid_world.Direction{DX: -1, DY: 0}] // toward
			So(east, ShouldBeGreaterThan, west)
		})

		Convey("Sharper policies are more peaked", func() {
			g, _ := grid_world.NewGrid(8, grid_world.Clamped)
			threat := &fixedEntity{tag: grid_world.PredatorTag, pos: grid_world.Position{X: 1, Y: 4}}
			mild := NewReactivePolicy(g, threat, 0.2)
			sharp := NewReactivePolicy(g, threat, 3.0)

			pos := grid_world.Position{X: 4, Y: 4}
			east := grid_world.Direction{DX: 1, DY: 0}
			So(sharp.Distribution(pos)[east], ShouldBeGreaterThan, mild.Distribution(pos)[east])
		})
	})
}

type fixedEntity struct {
	tag rune
	pos grid_world.Position
}

func (e *fixedEntity) Tag() rune                     { return e.tag }
func (e *fixedEntity) Position() grid_world.Position { return e.pos }
