// Package client implements the client side of the wire protocol: a
// session that frames and sends requests, correlates responses to
// pending promises by key, times out abandoned requests, and validates
// inbound updates before handing them to the application.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Ko-stant/grid-depths-engine/internal/netstring"
	"github.com/Ko-stant/grid-depths-engine/internal/promise"
	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
)

// DefaultTimeout is how long a request waits for its response before the
// promise is rejected locally.
const DefaultTimeout = 2 * time.Second

var (
	// ErrTimeout rejects a request promise when no response arrived in
	// time. The server is unaffected; a late response is dropped.
	ErrTimeout = errors.New("client: request timed out")

	// ErrClosed rejects every pending promise when the session ends.
	ErrClosed = errors.New("client: session closed")
)

// Logger is the narrow logging surface the session needs.
type Logger interface {
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

// UpdateHandler receives validated server-initiated updates.
type UpdateHandler func(action string, data map[string]any)

// Session drives one connection to the server. The request key counter
// is owned by the session, not shared process state, so keys are unique
// per connection generation.
type Session struct {
	user     string
	conn     net.Conn
	timeout  time.Duration
	registry protocol.Registry
	logger   Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nextKey  uint64
	pending  map[uint64]*promise.Promise
	onUpdate UpdateHandler
}

// NewSession wraps an established connection. timeout <= 0 selects
// DefaultTimeout.
func NewSession(conn net.Conn, user string, timeout time.Duration, logger Logger) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Session{
		user:     user,
		conn:     conn,
		timeout:  timeout,
		registry: protocol.Actions(),
		logger:   logger,
		pending:  make(map[uint64]*promise.Promise),
	}
}

// OnUpdate registers the handler for inbound updates. Must be called
// before Run.
func (s *Session) OnUpdate(fn UpdateHandler) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// Send transmits a request and returns a promise for its response. The
// promise resolves with the *protocol.Response on status success and
// rejects with it on any other status; it rejects with ErrTimeout when
// no response arrives in time.
func (s *Session) Send(action string, data map[string]any) *promise.Promise {
	s.mu.Lock()
	s.nextKey++
	key := s.nextKey
	p := promise.New()
	s.pending[key] = p
	s.mu.Unlock()

	raw, err := protocol.EncodeRequest(&protocol.Request{
		Key:    key,
		User:   s.user,
		Action: action,
		Data:   data,
	})
	if err == nil {
		err = s.write(raw)
	}
	if err != nil {
		s.forget(key)
		_ = p.Reject(fmt.Errorf("send %s: %w", action, err))
		return p
	}

	time.AfterFunc(s.timeout, func() {
		if s.forget(key) {
			_ = p.Reject(ErrTimeout)
		}
	})
	return p
}

// Run reads the connection until it fails or closes, dispatching every
// decoded message. It always leaves the session with no pending
// promises: whatever is still open is rejected with ErrClosed.
func (s *Session) Run() error {
	defer s.failPending(ErrClosed)

	var scanner netstring.Scanner
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			payloads, ferr := scanner.Feed(buf[:n])
			for _, payload := range payloads {
				s.handle(payload)
			}
			if ferr != nil {
				s.logger.Errorf("framing error, closing connection: %v", ferr)
				_ = s.conn.Close()
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// Close tears the connection down; Run returns shortly after.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(netstring.Encode(payload))
	return err
}

// forget removes a pending promise, reporting whether it was present.
func (s *Session) forget(key uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; !ok {
		return false
	}
	delete(s.pending, key)
	return true
}

func (s *Session) failPending(reason error) {
	s.mu.Lock()
	orphans := s.pending
	s.pending = make(map[uint64]*promise.Promise)
	s.mu.Unlock()

	for _, p := range orphans {
		_ = p.Reject(reason)
	}
}

func (s *Session) handle(payload []byte) {
	msg, err := protocol.DecodeMessage(payload)
	if err != nil {
		s.logger.Errorf("dropping malformed message: %v", err)
		return
	}

	switch m := msg.(type) {
	case *protocol.Response:
		s.mu.Lock()
		p, ok := s.pending[m.Key]
		if ok {
			delete(s.pending, m.Key)
		}
		s.mu.Unlock()
		if !ok {
			// Already timed out (or never ours); drop it.
			s.logger.Infof("unmatched response for key %d", m.Key)
			return
		}
		if m.Status == protocol.StatusSuccess {
			_ = p.Resolve(m)
		} else {
			_ = p.Reject(m)
		}

	case *protocol.Update:
		// Updates pass the same action schemas the server applies to
		// requests before the application sees them.
		if err := s.registry.Validate(m.Action, m.Data); err != nil {
			s.logger.Errorf("dropping invalid update %q: %v", m.Action, err)
			return
		}
		s.mu.Lock()
		fn := s.onUpdate
		s.mu.Unlock()
		if fn != nil {
			fn(m.Action, m.Data)
		}

	default:
		s.logger.Errorf("unexpected message on client connection: %T", msg)
	}
}
