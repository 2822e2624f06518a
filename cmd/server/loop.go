package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ko-stant/grid-depths-engine/internal/game"
	"github.com/Ko-stant/grid-depths-engine/internal/metrics"
	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
	"github.com/Ko-stant/grid-depths-engine/internal/ws"
)

// envelope pairs an incoming request with the connection that sent it so
// the loop knows where to write the response.
type envelope struct {
	from *connection
	req  *protocol.Request
}

// Loop is the single goroutine that owns all game state. Connections
// feed requests in through channels; the loop answers them, advances the
// world on a fixed tick, and fans updates out to every connection. No
// game state is ever touched from another goroutine.
type Loop struct {
	world    *game.World
	registry protocol.Registry
	metrics  *metrics.LoopMetrics
	hub      *ws.Hub
	logger   *zap.SugaredLogger

	requests   chan envelope
	register   chan *connection
	unregister chan *connection
	done       chan struct{}
	conns      map[*connection]struct{}
}

func NewLoop(registry protocol.Registry, m *metrics.LoopMetrics, hub *ws.Hub, logger *zap.SugaredLogger) *Loop {
	return &Loop{
		registry:   registry,
		metrics:    m,
		hub:        hub,
		logger:     logger,
		requests:   make(chan envelope, 64),
		register:   make(chan *connection),
		unregister: make(chan *connection),
		done:       make(chan struct{}),
		conns:      make(map[*connection]struct{}),
	}
}

// Attach wires the world in after construction. The world's store needs
// the loop as its broadcaster, so the two are created in sequence and
// joined here before Run is called.
func (l *Loop) Attach(w *game.World) {
	l.world = w
}

// Run processes requests and ticks until ctx is cancelled. It must be
// the only goroutine that calls into the world.
func (l *Loop) Run(ctx context.Context, tick time.Duration) {
	// done unblocks connection readers parked on register/unregister
	// after the loop has stopped draining those channels.
	defer close(l.done)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range l.conns {
				c.close()
			}
			return
		case c := <-l.register:
			l.conns[c] = struct{}{}
			l.logger.Infof("connection opened: %s", c.remote())
		case c := <-l.unregister:
			delete(l.conns, c)
			c.close()
			l.logger.Infof("connection closed: %s", c.remote())
		case env := <-l.requests:
			l.handle(env)
		case <-ticker.C:
			start := time.Now()
			l.world.Step()
			l.metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

func (l *Loop) handle(env envelope) {
	l.metrics.IncRequest()

	resp := &protocol.Response{Key: env.req.Key, Status: protocol.StatusSuccess}
	data, err := l.dispatch(env.req)

	var invalid *protocol.InvalidError
	var illegal *protocol.IllegalError
	switch {
	case err == nil:
		resp.Data = data
	case errors.As(err, &invalid):
		resp.Status = protocol.StatusInvalid
		resp.Data = map[string]any{"message": err.Error()}
		l.metrics.IncInvalid()
	case errors.As(err, &illegal):
		resp.Status = protocol.StatusIllegal
		resp.Data = map[string]any{"message": err.Error()}
		l.metrics.IncIllegal()
	default:
		resp.Status = protocol.StatusInternal
		resp.Data = map[string]any{"message": "internal server error"}
		l.metrics.IncInternal()
		l.logger.Errorf("request %s from %q failed: %v", env.req.Action, env.req.User, err)
	}

	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		l.logger.Errorf("encode response: %v", err)
		return
	}
	if err := env.from.send(payload); err != nil {
		l.logger.Errorf("write to %s: %v", env.from.remote(), err)
		delete(l.conns, env.from)
		env.from.close()
	}
}

// dispatch validates the request against the action registry, then hands
// it to the world. A panicking handler is converted into an error so one
// bad request cannot take the loop down.
func (l *Loop) dispatch(req *protocol.Request) (data map[string]any, err error) {
	if verr := l.registry.Validate(req.Action, req.Data); verr != nil {
		return nil, verr
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %q panicked: %v", req.Action, r)
		}
	}()
	return l.world.Dispatch(req.User, req.Action, req.Data)
}

// BroadcastUpdate sends an update to every connected client and every
// spectator. Called by maps (via the store) and handlers while the loop
// goroutine is running them, so it needs no locking around l.conns.
func (l *Loop) BroadcastUpdate(action string, data map[string]any) {
	payload, err := protocol.EncodeUpdate(&protocol.Update{Action: action, Data: data})
	if err != nil {
		l.logger.Errorf("encode update %s: %v", action, err)
		return
	}
	for c := range l.conns {
		if err := c.send(payload); err != nil {
			l.logger.Errorf("broadcast to %s: %v", c.remote(), err)
			delete(l.conns, c)
			c.close()
		}
	}
	l.hub.Broadcast(payload)
	l.metrics.IncBroadcast()
}
