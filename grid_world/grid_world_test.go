package grid_world

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type testEntity struct {
	tag rune
	pos Position
}

func (e *testEntity) Tag() rune          { return e.tag }
func (e *testEntity) Position() Position { return e.pos }

type phaseRecorder struct {
	testEntity
	log   *[]string
	label string
}

func (a *phaseRecorder) Act(*Grid)      { *a.log = append(*a.log, a.label+":act") }
func (a *phaseRecorder) Perceive(*Grid) { *a.log = append(*a.log, a.label+":perceive") }

func TestNormalize(t *testing.T) {
	Convey("When positions step outside the grid", t, func() {
		Convey("Clamped boundaries pin to the nearest edge", func() {
			g, err := NewGrid(5, Clamped)
			So(err, ShouldBeNil)

			So(g.Normalize(Position{X: -1, Y: 2}), ShouldResemble, Position{X: 0, Y: 2})
			So(g.Normalize(Position{X: 7, Y: -3}), ShouldResemble, Position{X: 4, Y: 0})
			So(g.Normalize(Position{X: 3, Y: 3}), ShouldResemble, Position{X: 3, Y: 3})
		})

		Convey("Toroidal boundaries wrap to the opposite edge", func() {
			g, err := NewGrid(5, Toroidal)
			So(err, ShouldBeNil)

			So(g.Normalize(Position{X: -1, Y: 2}), ShouldResemble, Position{X: 4, Y: 2})
			So(g.Normalize(Position{X: 5, Y: 6}), ShouldResemble, Position{X: 0, Y: 1})
			So(g.Normalize(Position{X: -6, Y: 0}), ShouldResemble, Position{X: 4, Y: 0})
		})

		Convey("Walled cells fall back to the passed position", func() {
			g, err := NewGrid(5, Clamped)
			So(err, ShouldBeNil)
			So(g.AddWall(Position{X: 0, Y: 2}), ShouldBeNil)

			from := Position{X: 1, Y: 2}
			So(g.NormalizeAvoidingWalls(Position{X: -1, Y: 2}, from), ShouldResemble, from)
			So(g.NormalizeAvoidingWalls(Position{X: 2, Y: 2}, from), ShouldResemble, Position{X: 2, Y: 2})
		})
	})
}

func TestDelta(t *testing.T) {
	Convey("When displacements are computed", t, func() {
		Convey("Toroidal deltas take the short way around the seam", func() {
			g, _ := NewGrid(6, Toroidal)

			d := g.Delta(Position{X: 5, Y: 0}, Position{X: 0, Y: 0})
			So(d, ShouldResemble, Direction{DX: 1, DY: 0})

			d = g.Delta(Position{X: 0, Y: 1}, Position{X: 5, Y: 1})
			So(d, ShouldResemble, Direction{DX: -1, DY: 0})
		})

		Convey("Clamped deltas are the raw difference", func() {
			g, _ := NewGrid(6, Clamped)

			d := g.Delta(Position{X: 5, Y: 0}, Position{X: 0, Y: 4})
			So(d, ShouldResemble, Direction{DX: -5, DY: 4})
		})

		Convey("StepToward yields a unit step per axis", func() {
			g, _ := NewGrid(6, Clamped)

			So(g.StepToward(Position{X: 0, Y: 0}, Position{X: 4, Y: 1}), ShouldResemble, Direction{DX: 1, DY: 1})
			So(g.StepToward(Position{X: 3, Y: 3}, Position{X: 3, Y: 3}), ShouldResemble, Direction{DX: 0, DY: 0})
		})
	})
}

func TestStateKey(t *testing.T) {
	Convey("When grid states are rendered as keys", t, func() {
		g, _ := NewGrid(3, Clamped)
		So(g.AddWall(Position{X: 1, Y: 1}), ShouldBeNil)
		hunted := &testEntity{tag: HuntedTag, pos: Position{X: 0, Y: 0}}
		predator := &testEntity{tag: PredatorTag, pos: Position{X: 2, Y: 2}}

		Convey("Identical configurations render identical keys", func() {
			k1 := g.StateKey(hunted, predator)
			k2 := g.StateKey(hunted, predator)
			So(k1, ShouldEqual, k2)
			So(k1, ShouldEqual, "h..\n.W.\n..P\n")
		})

		Convey("Moving any entity changes the key", func() {
			k1 := g.StateKey(hunted, predator)
			hunted.pos = Position{X: 2, Y: 0}
			So(g.StateKey(hunted, predator), ShouldNotEqual, k1)
		})

		Convey("Later entities overwrite earlier ones on a shared cell", func() {
			predator.pos = Position{X: 0, Y: 0}
			hunted.pos = Position{X: 0, Y: 0}
			key := g.StateKey(hunted, predator)
			So(strings.Count(key, string(PredatorTag)), ShouldEqual, 1)
			So(strings.Count(key, string(HuntedTag)), ShouldEqual, 0)
		})
	})
}

func TestStep(t *testing.T) {
	Convey("When the grid is stepped", t, func() {
		Convey("All act phases run before any perceive phase", func() {
			g, _ := NewGrid(4, Clamped)
			log := []string{}
			g.Register(&phaseRecorder{log: &log, label: "a"})
			g.Register(&phaseRecorder{log: &log, label: "b"})

			g.Step()

			So(log, ShouldResemble, []string{"a:act", "b:act", "a:perceive", "b:perceive"})
			So(g.Tick(), ShouldEqual, 1)
		})
	})
}
