// server serves the lesson visualization: a single page of live heatmap
// views synchronized to the simulation over a websocket.
package server

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"activeinference/lessons"
	"activeinference/server/fastview"
	"activeinference/server/heat_views"
	"activeinference/server/root_view"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server serves the main page and publishes view updates to clients over
// a websocket. The ele-update channel feeds whichever client holds the
// socket; this remains a single-viewer development server.
type Server struct {
	addr      string
	lastFrame heat_views.HeatFrame
	rootView  *root_view.RootView
	log       *logrus.Logger
}

// NewServer builds all of the views atop the snapshot stream and returns
// a server ready to Serve. The initial snapshot seeds the first page
// render; subsequent state arrives via the websocket.
func NewServer(
	ctx context.Context,
	addr string,
	initial lessons.Snapshot,
	snapshots <-chan lessons.Snapshot,
	log *logrus.Logger,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, snapshots)
	if err != nil {
		return nil, fmt.Errorf("building views: %w", err)
	}

	return &Server{
		addr:      addr,
		lastFrame: heat_views.Convert(initial),
		rootView:  rootView,
		log:       log,
	}, nil
}

func (server *Server) Serve() (err error) {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)

	server.log.WithField("addr", server.addr).Info("serving lesson views")
	if err = http.ListenAndServe(server.addr, router); err != nil {
		err = fmt.Errorf("serve: %w", err)
	}

	return
}

// serveWebsocket publishes view updates to the client until disconnect.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(server.rootView.Updates(), w, r)
	if err != nil {
		server.log.WithError(err).Error("websocket upgrade failed")
		return
	}

	if err := cli.Sync(); err != nil {
		server.log.WithError(err).Info("client disconnected")
	}
}

// serveIndex serves the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	if err := renderTemplate(w, server.rootView, server.lastFrame); err != nil {
		server.log.WithError(err).Error("rendering index")
		_, _ = w.Write([]byte(err.Error()))
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
