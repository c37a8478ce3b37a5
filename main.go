/*
Activeinference is a single page application demonstrating a predator that
hunts by maintaining a belief distribution over its prey's position. Each
lesson pairs the hunt with a different generative model of the prey's
movement, from a fixed uniform prior up to a small learned transformer,
and the page visualizes the belief and the model's predictions in
realtime as the predator closes in.
*/

package main

import (
	"context"
	"flag"
	"math/rand"
	"time"

	"activeinference/lessons"
	"activeinference/server"

	"github.com/sirupsen/logrus"
)

var (
	snapshots chan lessons.Snapshot = make(chan lessons.Snapshot)
	dbg       *bool
	lessonNum *int
	seed      *int64
	host      *string
	port      *string
	addr      string
)

func init() {
	dbg = flag.Bool("debug", false, "debug mode")
	lessonNum = flag.Int("lesson", 0, "lesson number override (1-6), 0 defers to config")
	seed = flag.Int64("seed", 0, "rng seed, 0 seeds from the clock")
	host = flag.String("host", "", "The host ip")
	port = flag.String("port", "8080", "The host port")
	flag.Parse()
	addr = *host + ":" + *port
}

func runApp() (err error) {
	log := logrus.New()
	if *dbg {
		log.SetLevel(logrus.DebugLevel)
	}

	var cfg *lessons.SimConfig
	if cfg, err = lessons.FromYaml("./config.yaml"); err != nil {
		return
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	runCtx, runCancel, err := cfg.WithRunDeadline(appCtx)
	if err != nil {
		return
	}
	defer runCancel()

	number := cfg.Lesson
	if *lessonNum > 0 {
		number = *lessonNum
	}
	var lesson lessons.Lesson
	if lesson, err = lessons.Get(number); err != nil {
		return
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	var sim *lessons.Sim
	if sim, err = lessons.Build(lesson, cfg, rng); err != nil {
		return
	}
	log.WithFields(logrus.Fields{
		"lesson": lesson.Number,
		"name":   lesson.Title,
		"seed":   rngSeed,
	}).Info("lesson built")

	// Capture the initial snapshot before the step loop starts mutating.
	initial := sim.Snapshot()
	go sim.Run(runCtx, time.Millisecond*100, func(snap lessons.Snapshot) {
		select {
		case snapshots <- snap:
		case <-runCtx.Done():
		}
	})

	var srv *server.Server
	if srv, err = server.NewServer(
		appCtx,
		addr,
		initial,
		snapshots,
		log,
	); err != nil {
		return
	}

	err = srv.Serve()
	return
}

func main() {
	if err := runApp(); err != nil {
		logrus.WithError(err).Fatal("app exited")
	}
}
