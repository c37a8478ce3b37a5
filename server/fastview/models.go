// fastview implements a small builder for server-pushed views: convert a
// stream of data models into a view-model stream, multiplex it to one or
// more views, and publish each view's element updates to web clients over
// a websocket.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and the operations to apply to it.
type EleUpdate struct {
	// EleId is the id by which to find the element.
	EleId string
	// Ops keys are attribute names, values the strings to set them to.
	// "textContent" is reserved: it sets the element's text instead.
	Ops []Op
}

// Op is one attribute key and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a server-side view: Parse adds its template to the
// passed parent (inheriting the parent's func-map) and returns the
// template name; Updates exposes the element-update stream.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	Parse(*template.Template) (string, error)
}
