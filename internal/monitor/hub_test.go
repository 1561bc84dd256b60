package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("observer count = %d, want %d", h.Count(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesAllObservers(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	srv := httptest.NewServer(h)
	defer srv.Close()

	a := dialHub(t, srv)
	defer a.Close()
	b := dialHub(t, srv)
	defer b.Close()
	waitForCount(t, h, 2)

	h.Broadcast([]byte(`{"devices":[]}`))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("observer read failed: %v", err)
		}
		if string(msg) != `{"devices":[]}` {
			t.Errorf("observer received %q", msg)
		}
	}
}

func TestHub_RemovesDisconnectedObserver(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForCount(t, h, 1)

	conn.Close()
	waitForCount(t, h, 0)

	// Broadcasting with nobody connected is a no-op, not a panic.
	h.Broadcast([]byte("x"))
}

func TestHub_DropsSlowObserver(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForCount(t, h, 1)

	// The observer never reads. Its queue fills and the hub must prune it
	// instead of blocking the broadcaster. Overshoot the queue depth well
	// past the socket buffers.
	payload := []byte(strings.Repeat("x", 64*1024))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			h.Broadcast(payload)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a slow observer")
	}
	waitForCount(t, h, 0)
}
