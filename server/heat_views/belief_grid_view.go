package heat_views

import (
	"fmt"
	"html/template"

	"activeinference/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const cellDim = 40 // cell height/width in pixels

// BeliefGrid renders the predator's belief distribution as a flat heatmap:
// one rect per cell whose opacity tracks the cell's belief mass, with the
// vision region outlined and both entities drawn as overlay glyphs.
type BeliefGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewBeliefGrid(
	done <-chan struct{},
	frames <-chan HeatFrame,
) (bg *BeliefGrid) {
	bg = &BeliefGrid{id: "beliefgrid"}
	bg.updates = channerics.Convert(done, frames, bg.onUpdate)
	return
}

func (bg *BeliefGrid) Updates() <-chan []fastview.EleUpdate {
	return bg.updates
}

// onUpdate returns the element updates needed for the view to reflect the
// passed frame. Opacity is normalized to the frame's max mass so the mode
// of the distribution always renders at full strength.
func (bg *BeliefGrid) onUpdate(frame HeatFrame) (ops []fastview.EleUpdate) {
	maxMass := 0.0
	for _, row := range frame.Cells {
		for _, cell := range row {
			if cell.Belief > maxMass {
				maxMass = cell.Belief
			}
		}
	}

	for _, row := range frame.Cells {
		for _, cell := range row {
			if cell.Wall {
				continue
			}
			opacity := 0.0
			if maxMass > 0 {
				opacity = cell.Belief / maxMass
			}
			stroke := "lightgray"
			if cell.Visible {
				stroke = "gold"
			}
			ops = append(ops, fastview.EleUpdate{
				EleId: fmt.Sprintf("%s-%d-%d", bg.id, cell.X, cell.Y),
				Ops: []fastview.Op{
					{Key: "fill-opacity", Value: fmt.Sprintf("%.3f", opacity)},
					{Key: "stroke", Value: stroke},
				},
			})
		}
	}

	ops = append(ops,
		fastview.EleUpdate{
			EleId: bg.id + "-prey",
			Ops: []fastview.Op{
				{Key: "cx", Value: fmt.Sprintf("%d", frame.Prey.X*cellDim+cellDim/2)},
				{Key: "cy", Value: fmt.Sprintf("%d", frame.Prey.Y*cellDim+cellDim/2)},
			},
		},
		fastview.EleUpdate{
			EleId: bg.id + "-predator",
			Ops: []fastview.Op{
				{Key: "cx", Value: fmt.Sprintf("%d", frame.Predator.X*cellDim+cellDim/2)},
				{Key: "cy", Value: fmt.Sprintf("%d", frame.Predator.Y*cellDim+cellDim/2)},
			},
		},
		fastview.EleUpdate{
			EleId: bg.id + "-tick",
			Ops: []fastview.Op{
				{Key: "textContent", Value: fmt.Sprintf("t=%d", frame.Tick)},
			},
		})

	return
}

// Parse returns an svg heatmap of belief rects plus the entity overlay.
func (bg *BeliefGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = bg.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			<h3>Belief</h3>
			{{ $cell_dim := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $n := len .Cells }}
			{{ $dim := mult $n $cell_dim }}
			<svg id="` + bg.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ $dim }}px" height="{{ add $dim 24 }}px"
				style="shape-rendering: crispEdges; stroke-width: 2;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
						{{ if $cell.Wall }}
						<rect x="{{ mult $cell.X $cell_dim }}" y="{{ mult $cell.Y $cell_dim }}"
							width="{{ $cell_dim }}" height="{{ $cell_dim }}"
							fill="lightgreen" stroke="lightgray" />
						{{ else }}
						<rect id="` + bg.id + `-{{$cell.X}}-{{$cell.Y}}"
							x="{{ mult $cell.X $cell_dim }}" y="{{ mult $cell.Y $cell_dim }}"
							width="{{ $cell_dim }}" height="{{ $cell_dim }}"
							fill="crimson" fill-opacity="0.0" stroke="lightgray" />
						{{ end }}
					{{ end }}
				{{ end }}
				<circle id="` + bg.id + `-prey"
					cx="{{ add (mult .Prey.X $cell_dim) (div $cell_dim 2) }}"
					cy="{{ add (mult .Prey.Y $cell_dim) (div $cell_dim 2) }}"
					r="{{ div $cell_dim 4 }}" fill="seagreen" stroke="black" />
				<circle id="` + bg.id + `-predator"
					cx="{{ add (mult .Predator.X $cell_dim) (div $cell_dim 2) }}"
					cy="{{ add (mult .Predator.Y $cell_dim) (div $cell_dim 2) }}"
					r="{{ div $cell_dim 4 }}" fill="black" stroke="black" />
				<text id="` + bg.id + `-tick" x="4" y="{{ add $dim 18 }}" stroke="none" fill="black">t={{ .Tick }}</text>
			</svg>
		</div>
		{{ end }}`)
	return
}
