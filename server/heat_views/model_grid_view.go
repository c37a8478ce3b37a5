package heat_views

import (
	"fmt"
	"html/template"

	"activeinference/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ModelGrid renders the transition model's own positional distribution,
// re-centered at the prey's last observed cell. For model kinds that
// expose no positional read-out the view renders empty.
type ModelGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewModelGrid(
	done <-chan struct{},
	frames <-chan HeatFrame,
) (mg *ModelGrid) {
	mg = &ModelGrid{id: "modelgrid"}
	mg.updates = channerics.Convert(done, frames, mg.onUpdate)
	return
}

func (mg *ModelGrid) Updates() <-chan []fastview.EleUpdate {
	return mg.updates
}

func (mg *ModelGrid) onUpdate(frame HeatFrame) (ops []fastview.EleUpdate) {
	if !frame.HasModel {
		return
	}

	maxMass := 0.0
	for _, row := range frame.Cells {
		for _, cell := range row {
			if cell.Model > maxMass {
				maxMass = cell.Model
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
				opacity = cell.Model / maxMass
			}
			ops = append(ops, fastview.EleUpdate{
				EleId: fmt.Sprintf("%s-%d-%d", mg.id, cell.X, cell.Y),
				Ops: []fastview.Op{
					{Key: "fill-opacity", Value: fmt.Sprintf("%.3f", opacity)},
				},
			})
		}
	}

	return
}

// Parse returns an svg heatmap mirroring the belief grid's layout, shaded
// by the model's predicted mass rather than the fused belief.
func (mg *ModelGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = mg.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		{{ if .HasModel }}
		<div style="padding:20px;">
			<h3>Transition model</h3>
			{{ $cell_dim := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $n := len .Cells }}
			{{ $dim := mult $n $cell_dim }}
			<svg id="` + mg.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ $dim }}px" height="{{ $dim }}px"
				style="shape-rendering: crispEdges; stroke-width: 2;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
						{{ if $cell.Wall }}
						<rect x="{{ mult $cell.X $cell_dim }}" y="{{ mult $cell.Y $cell_dim }}"
							width="{{ $cell_dim }}" height="{{ $cell_dim }}"
							fill="lightgreen" stroke="lightgray" />
						{{ else }}
						<rect id="` + mg.id + `-{{$cell.X}}-{{$cell.Y}}"
							x="{{ mult $cell.X $cell_dim }}" y="{{ mult $cell.Y $cell_dim }}"
							width="{{ $cell_dim }}" height="{{ $cell_dim }}"
							fill="steelblue" fill-opacity="0.0" stroke="lightgray" />
						{{ end }}
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}
		{{ end }}`)
	return
}
