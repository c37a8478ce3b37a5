package heat_views

import (
	"bytes"
	"html/template"
	"strings"
	"testing"

	"activeinference/grid_world"
	"activeinference/lessons"

	. "github.com/smartystreets/goconvey/convey"
)

func testSnapshot() lessons.Snapshot {
	belief := [][]float64{
		{0.1, 0.2, 0.0},
		{0.0, 0.5, 0.0},
		{0.0, 0.1, 0.1},
	}
	return lessons.Snapshot{
		Tick:     7,
		GridSize: 3,
		Belief:   belief,
		Walls:    []grid_world.Position{{X: 2, Y: 0}},
		Vision:   []grid_world.Position{{X: 1, Y: 1}, {X: 2, Y: 1}},
		Prey:     grid_world.Position{X: 0, Y: 0},
		Predator: grid_world.Position{X: 2, Y: 2},
	}
}

func viewFuncs(t *template.Template) *template.Template {
	return t.Funcs(template.FuncMap{
		"add":  func(i, j int) int { return i + j },
		"sub":  func(i, j int) int { return i - j },
		"mult": func(i, j int) int { return i * j },
		"div":  func(i, j int) int { return i / j },
	})
}

func TestConvert(t *testing.T) {
	Convey("When snapshots are flattened to heat frames", t, func() {
		frame := Convert(testSnapshot())

		Convey("Cells carry position, mass and display flags", func() {
			So(len(frame.Cells), ShouldEqual, 3)
			So(frame.Cells[1][1].Belief, ShouldAlmostEqual, 0.5)
			So(frame.Cells[0][2].Wall, ShouldBeTrue)
			So(frame.Cells[1][1].Visible, ShouldBeTrue)
			So(frame.Cells[0][0].Visible, ShouldBeFalse)
		})

		Convey("Markers and tick pass through", func() {
			So(frame.Tick, ShouldEqual, 7)
			So(frame.Prey, ShouldResemble, Marker{X: 0, Y: 0})
			So(frame.Predator, ShouldResemble, Marker{X: 2, Y: 2})
		})

		Convey("A nil model grid disables the model view", func() {
			So(frame.HasModel, ShouldBeFalse)
		})
	})
}

func TestBeliefGridUpdates(t *testing.T) {
	Convey("When a frame arrives at the belief view", t, func() {
		bg := &BeliefGrid{id: "beliefgrid"}
		ops := bg.onUpdate(Convert(testSnapshot()))

		Convey("Every open cell gets an opacity op", func() {
			byId := map[string][]string{}
			for _, update := range ops {
				for _, op := range update.Ops {
					byId[update.EleId] = append(byId[update.EleId], op.Key+"="+op.Value)
				}
			}

			// 8 open cells plus two markers and the tick label.
			So(len(ops), ShouldEqual, 11)
			So(byId, ShouldContainKey, "beliefgrid-0-0")
			So(byId, ShouldNotContainKey, "beliefgrid-2-0") // wall

			// The mode renders at full opacity.
			So(byId["beliefgrid-1-1"], ShouldContain, "fill-opacity=1.000")
			So(byId["beliefgrid-1-1"], ShouldContain, "stroke=gold")
			So(byId["beliefgrid-0-0"], ShouldContain, "stroke=lightgray")
		})

		Convey("Markers track entity cells", func() {
			found := false
			for _, update := range ops {
				if update.EleId == "beliefgrid-predator" {
					found = true
					So(update.Ops[0].Key, ShouldEqual, "cx")
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestModelGridUpdates(t *testing.T) {
	Convey("When frames arrive at the model view", t, func() {
		mg := &ModelGrid{id: "modelgrid"}

		Convey("Model-less frames produce no ops", func() {
			So(mg.onUpdate(Convert(testSnapshot())), ShouldBeEmpty)
		})

		Convey("Model mass normalizes like belief", func() {
			snap := testSnapshot()
			snap.ModelGrid = [][]float64{
				{0, 0, 0},
				{0, 0.2, 0},
				{0, 0, 0.1},
			}
			ops := mg.onUpdate(Convert(snap))
			So(len(ops), ShouldEqual, 8)

			for _, update := range ops {
				if update.EleId == "modelgrid-1-1" {
					So(update.Ops[0].Value, ShouldEqual, "1.000")
				}
			}
		})
	})
}

func TestViewTemplates(t *testing.T) {
	Convey("When the views parse and render", t, func() {
		snap := testSnapshot()
		snap.ModelGrid = [][]float64{
			{0, 0, 0},
			{0, 1, 0},
			{0, 0, 0},
		}
		frame := Convert(snap)

		Convey("The belief grid renders every cell rect", func() {
			done := make(chan struct{})
			defer close(done)
			bg := NewBeliefGrid(done, make(chan HeatFrame))

			root := viewFuncs(template.New("index.html"))
			name, err := bg.Parse(root)
			So(err, ShouldBeNil)

			var buf bytes.Buffer
			So(root.ExecuteTemplate(&buf, name, frame), ShouldBeNil)
			html := buf.String()
			So(html, ShouldContainSubstring, `id="beliefgrid-0-0"`)
			So(html, ShouldContainSubstring, `id="beliefgrid-prey"`)
			So(strings.Count(html, "<rect"), ShouldEqual, 9)
		})

		Convey("The model grid renders when a model grid is present", func() {
			done := make(chan struct{})
			defer close(done)
			mg := NewModelGrid(done, make(chan HeatFrame))

			root := viewFuncs(template.New("index.html"))
			name, err := mg.Parse(root)
			So(err, ShouldBeNil)

			var buf bytes.Buffer
			So(root.ExecuteTemplate(&buf, name, frame), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `id="modelgrid-1-1"`)
		})
	})
}
