// heat_views contains views derived from the HeatFrame view-model.
package heat_views

import (
	"activeinference/lessons"
)

// HeatCell is one grid cell flattened for template consumption: position,
// the predator's belief mass there, the transition model's mass there,
// and the static/ephemeral display flags. As a rule of thumb, HeatCell
// fields should be immediately usable as view parameters.
type HeatCell struct {
	X, Y    int
	Belief  float64
	Model   float64
	Wall    bool
	Visible bool
}

// HeatFrame is the per-tick view-model shared by all heat views.
type HeatFrame struct {
	Tick     int
	Cells    [][]HeatCell
	HasModel bool
	Prey     Marker
	Predator Marker
}

// Marker is an entity position for the overlay glyphs.
type Marker struct {
	X, Y int
}

// Convert flattens a simulation snapshot into the HeatFrame consumed by
// the heat views. Cells are indexed [y][x], matching svg row order.
func Convert(snap lessons.Snapshot) HeatFrame {
	n := snap.GridSize
	cells := make([][]HeatCell, n)
	for y := 0; y < n; y++ {
		cells[y] = make([]HeatCell, n)
		for x := 0; x < n; x++ {
			cells[y][x] = HeatCell{X: x, Y: y}
			if snap.Belief != nil {
				cells[y][x].Belief = snap.Belief[y][x]
			}
			if snap.ModelGrid != nil {
				cells[y][x].Model = snap.ModelGrid[y][x]
			}
		}
	}
	for _, w := range snap.Walls {
		cells[w.Y][w.X].Wall = true
	}
	for _, v := range snap.Vision {
		cells[v.Y][v.X].Visible = true
	}

	return HeatFrame{
		Tick:     snap.Tick,
		Cells:    cells,
		HasModel: snap.ModelGrid != nil,
		Prey:     Marker{X: snap.Prey.X, Y: snap.Prey.Y},
		Predator: Marker{X: snap.Predator.X, Y: snap.Predator.Y},
	}
}
