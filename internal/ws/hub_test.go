package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// startHub serves a minimal attach endpoint: every accepted websocket is
// added to the hub and held open without the hub ever removing it, so
// tests exercise Broadcast's own eviction.
func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialViewer(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s did not happen within 2s", what)
}

func TestBroadcastReachesViewer(t *testing.T) {
	// Arrange
	hub, url := startHub(t)
	conn := dialViewer(t, url)
	waitFor(t, "viewer attach", func() bool { return hub.Count() == 1 })

	// Act
	hub.Broadcast([]byte(`{"type":"update"}`))

	// Assert
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	kind, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if kind != websocket.MessageText {
		t.Errorf("message type = %v, want text", kind)
	}
	if got := string(payload); got != `{"type":"update"}` {
		t.Errorf("payload = %q", got)
	}
}

func TestBroadcastReachesEveryViewer(t *testing.T) {
	// Arrange
	hub, url := startHub(t)
	first := dialViewer(t, url)
	second := dialViewer(t, url)
	waitFor(t, "viewer attach", func() bool { return hub.Count() == 2 })

	// Act
	hub.Broadcast([]byte(`{"a":1}`))

	// Assert
	for _, conn := range []*websocket.Conn{first, second} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, payload, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("read broadcast: %v", err)
		}
		if string(payload) != `{"a":1}` {
			t.Errorf("payload = %q", payload)
		}
	}
}

func TestBroadcastEvictsDeadViewer(t *testing.T) {
	// Arrange
	hub, url := startHub(t)
	conn := dialViewer(t, url)
	waitFor(t, "viewer attach", func() bool { return hub.Count() == 1 })

	// Act: kill the socket without a close handshake, then keep
	// broadcasting until a write fails and the viewer is dropped.
	conn.CloseNow()
	waitFor(t, "eviction", func() bool {
		hub.Broadcast([]byte(`{"type":"update"}`))
		return hub.Count() == 0
	})
}

func TestRemoveDetachesViewer(t *testing.T) {
	// Arrange
	hub, url := startHub(t)
	dialViewer(t, url)
	waitFor(t, "viewer attach", func() bool { return hub.Count() == 1 })
	var viewer *websocket.Conn
	hub.mu.Lock()
	for c := range hub.viewers {
		viewer = c
	}
	hub.mu.Unlock()

	// Act
	hub.Remove(viewer)

	// Assert
	if hub.Count() != 0 {
		t.Errorf("Count() = %d after Remove, want 0", hub.Count())
	}
}
