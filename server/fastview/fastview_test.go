package fastview

import (
	"context"
	"html/template"
	"strconv"
	"testing"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	. "github.com/smartystreets/goconvey/convey"
)

// echoView converts each view-model string into a single textContent op.
type echoView struct {
	updates <-chan []EleUpdate
}

func newEchoView(done <-chan struct{}, vms <-chan string) *echoView {
	return &echoView{
		updates: channerics.Convert(done, vms, func(vm string) []EleUpdate {
			return []EleUpdate{
				{EleId: "echo", Ops: []Op{{Key: "textContent", Value: vm}}},
			}
		}),
	}
}

func (ev *echoView) Updates() <-chan []EleUpdate { return ev.updates }

func (ev *echoView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "echo" }}<div id="echo">{{ . }}</div>{{ end }}`)
	return "echo", err
}

func TestViewBuilder(t *testing.T) {
	Convey("When views are built from a data stream", t, func() {
		Convey("Build validates its inputs", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			input := make(chan int)

			_, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(input, strconv.Itoa).
				Build()
			So(err, ShouldEqual, ErrNoViews)

			_, err = NewViewBuilder[int, string]().
				WithContext(ctx).
				WithView(func(done <-chan struct{}, vms <-chan string) ViewComponent {
					return newEchoView(done, vms)
				}).
				Build()
			So(err, ShouldEqual, ErrNoModel)
		})

		Convey("Data models flow through conversion to every view", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			input := make(chan int)

			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(input, strconv.Itoa).
				WithView(func(done <-chan struct{}, vms <-chan string) ViewComponent {
					return newEchoView(done, vms)
				}).
				WithView(func(done <-chan struct{}, vms <-chan string) ViewComponent {
					return newEchoView(done, vms)
				}).
				Build()
			So(err, ShouldBeNil)
			So(len(views), ShouldEqual, 2)

			go func() { input <- 42 }()

			for _, view := range views {
				select {
				case updates := <-view.Updates():
					So(len(updates), ShouldEqual, 1)
					So(updates[0].EleId, ShouldEqual, "echo")
					So(updates[0].Ops[0].Value, ShouldEqual, "42")
				case <-time.After(time.Second):
					So("no update received", ShouldBeEmpty)
				}
			}
		})
	})
}
