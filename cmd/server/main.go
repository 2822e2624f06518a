package main

import (
	"context"
	"flag"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ko-stant/grid-depths-engine/internal/game"
	"github.com/Ko-stant/grid-depths-engine/internal/logging"
	"github.com/Ko-stant/grid-depths-engine/internal/metrics"
	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
	"github.com/Ko-stant/grid-depths-engine/internal/ws"
)

const (
	mapWidth  = 60
	mapHeight = 40
)

func main() {
	addr := flag.String("addr", "localhost:5001", "game listen address")
	debugAddr := flag.String("debug-addr", "localhost:5101", "debug HTTP listen address (empty disables)")
	mapsDir := flag.String("maps-dir", "", "directory for persisted maps (empty keeps maps in memory)")
	tick := flag.Duration("tick", 100*time.Millisecond, "world tick interval")
	logFile := flag.String("log", "", "log file path (empty logs to stderr)")
	seed := flag.Int64("seed", 0, "map generation seed (0 seeds from the clock)")
	flag.Parse()

	sugar, err := logging.New(*logFile)
	if err != nil {
		os.Stderr.WriteString("logger init: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer sugar.Sync()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	loopMetrics := &metrics.LoopMetrics{}
	hub := ws.NewHub()
	loop := NewLoop(protocol.Actions(), loopMetrics, hub, sugar)
	store := game.NewManager(loop, mapWidth, mapHeight, *mapsDir, rng)
	loop.Attach(game.NewWorld(store, sugar))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		sugar.Errorf("listen on %s: %v", *addr, err)
		os.Exit(1)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	if *debugAddr != "" {
		debug := &http.Server{Addr: *debugAddr, Handler: newDebugMux(loopMetrics, hub, sugar)}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = debug.Shutdown(shutdownCtx)
		}()
		go func() {
			sugar.Infof("debug surface on http://%s", *debugAddr)
			if err := debug.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sugar.Errorf("debug server: %v", err)
			}
		}()
	}

	go loop.Run(ctx, *tick)

	sugar.Infof("serving on %s (tick %s, seed %d)", *addr, *tick, *seed)
	if err := NewServer(loop, loopMetrics, sugar).Serve(ln); err != nil {
		sugar.Errorf("serve: %v", err)
		os.Exit(1)
	}
	sugar.Infof("shut down")
}
