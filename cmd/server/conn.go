package main

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ko-stant/grid-depths-engine/internal/metrics"
	"github.com/Ko-stant/grid-depths-engine/internal/netstring"
	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
)

const writeTimeout = 3 * time.Second

// connection wraps one accepted TCP socket. Reads happen on the per
// connection goroutine started by Server.Serve; all writes come from the
// loop goroutine.
type connection struct {
	conn      net.Conn
	closeOnce sync.Once
}

func newConnection(conn net.Conn) *connection {
	return &connection{conn: conn}
}

func (c *connection) send(payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(netstring.Encode(payload))
	return err
}

func (c *connection) close() {
	c.closeOnce.Do(func() { c.conn.Close() })
}

func (c *connection) remote() string {
	return c.conn.RemoteAddr().String()
}

// Server accepts TCP connections and pumps their decoded requests into
// the loop.
type Server struct {
	loop    *Loop
	metrics *metrics.LoopMetrics
	logger  *zap.SugaredLogger
}

func NewServer(loop *Loop, m *metrics.LoopMetrics, logger *zap.SugaredLogger) *Server {
	return &Server{loop: loop, metrics: m, logger: logger}
}

// Serve accepts connections until the listener is closed. Closing the
// listener is the shutdown signal; Serve then returns nil.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return nil
		}
		go s.read(newConnection(conn))
	}
}

// read is the per-connection goroutine. It frames bytes into messages
// and forwards requests to the loop. A framing error is unrecoverable
// for the stream, so the connection is dropped; a message that decodes
// badly is logged and skipped because there is no key to answer with.
func (s *Server) read(c *connection) {
	select {
	case s.loop.register <- c:
	case <-s.loop.done:
		c.close()
		return
	}
	defer func() {
		select {
		case s.loop.unregister <- c:
		case <-s.loop.done:
			c.close()
		}
	}()

	var scanner netstring.Scanner
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			payloads, ferr := scanner.Feed(buf[:n])
			for _, payload := range payloads {
				s.deliver(c, payload)
			}
			if ferr != nil {
				s.metrics.IncFramingError()
				s.logger.Errorf("framing error from %s: %v", c.remote(), ferr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) deliver(c *connection, payload []byte) {
	msg, err := protocol.DecodeMessage(payload)
	if err != nil {
		s.metrics.IncInvalid()
		s.logger.Errorf("bad message from %s: %v", c.remote(), err)
		return
	}
	req, ok := msg.(*protocol.Request)
	if !ok {
		s.logger.Errorf("unexpected %T from %s", msg, c.remote())
		return
	}
	select {
	case s.loop.requests <- envelope{from: c, req: req}:
	case <-s.loop.done:
	}
}
