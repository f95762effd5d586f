package live

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tolkuchka/internal/models"
)

type mockConn struct {
	reads  chan any // models.Message or error
	writes chan string

	writeErr error

	mu     sync.Mutex
	closed int
}

func newMockConn() *mockConn {
	return &mockConn{
		reads:  make(chan any, 10),
		writes: make(chan string, 10),
	}
}

func (m *mockConn) ReadJSON(v any) error {
	r, ok := <-m.reads
	if !ok {
		return errors.New("connection closed")
	}
	switch val := r.(type) {
	case error:
		return val
	case models.Message:
		if ptr, ok := v.(*models.Message); ok {
			*ptr = val
		}
	}
	return nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes <- string(data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	if m.closed == 1 {
		close(m.reads)
	}
	return nil
}

func (m *mockConn) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func dialMock(t *testing.T, conn *mockConn) *Session {
	t.Helper()
	s, err := dial(context.Background(),
		func(ctx context.Context, endpoint string) (wsConn, error) { return conn, nil },
		"ws://test", "alice_bob", "alice")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return s
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(1 * time.Second):
		t.Fatal("no event within 1s")
		return Event{}
	}
}

func TestDial_Opened(t *testing.T) {
	conn := newMockConn()
	s := dialMock(t, conn)
	defer s.Close()

	if ev := nextEvent(t, s); ev.Type != EventOpened {
		t.Errorf("expected opened event, got %v", ev.Type)
	}
	if s.State() != models.StateOpen {
		t.Errorf("expected open state, got %v", s.State())
	}
	if s.Room() != "alice_bob" {
		t.Errorf("unexpected room: %q", s.Room())
	}
	if s.ID() == "" {
		t.Error("session id not assigned")
	}
}

func TestDial_HandshakeError(t *testing.T) {
	_, err := dial(context.Background(),
		func(ctx context.Context, endpoint string) (wsConn, error) {
			return nil, errors.New("refused")
		},
		"ws://test", "alice_bob", "alice")
	if err == nil {
		t.Fatal("expected dial error")
	}
}

func TestSession_ReceiveOrder(t *testing.T) {
	conn := newMockConn()
	s := dialMock(t, conn)
	defer s.Close()

	nextEvent(t, s) // opened

	conn.reads <- models.Message{User: "bob", Text: "one"}
	conn.reads <- models.Message{User: "bob", Text: "two"}
	conn.reads <- models.Message{User: "bob", Text: "three"}

	for _, want := range []string{"one", "two", "three"} {
		ev := nextEvent(t, s)
		if ev.Type != EventMessage {
			t.Fatalf("expected message event, got %v", ev.Type)
		}
		if ev.Message.Text != want {
			t.Errorf("expected %q, got %q", want, ev.Message.Text)
		}
	}
}

func TestSession_SendTrimsText(t *testing.T) {
	conn := newMockConn()
	s := dialMock(t, conn)
	defer s.Close()

	s.Send("  hello  ")

	select {
	case frame := <-conn.writes:
		if frame != "hello" {
			t.Errorf("expected trimmed frame, got %q", frame)
		}
	case <-time.After(1 * time.Second):
		t.Error("no frame transmitted")
	}
}

func TestSession_SendBlankIsNoop(t *testing.T) {
	conn := newMockConn()
	s := dialMock(t, conn)
	defer s.Close()

	s.Send("")
	s.Send("   ")

	select {
	case frame := <-conn.writes:
		t.Errorf("unexpected frame %q", frame)
	default:
	}
}

func TestSession_SendAfterCloseIsNoop(t *testing.T) {
	conn := newMockConn()
	s := dialMock(t, conn)

	s.Close()
	s.Send("hello")

	select {
	case frame := <-conn.writes:
		t.Errorf("unexpected frame %q", frame)
	default:
	}
	if s.State() != models.StateClosed {
		t.Errorf("expected closed state, got %v", s.State())
	}
}

func TestSession_ReadErrorFails(t *testing.T) {
	conn := newMockConn()
	s := dialMock(t, conn)

	nextEvent(t, s) // opened
	conn.reads <- errors.New("broken pipe")

	ev := nextEvent(t, s)
	if ev.Type != EventFailed {
		t.Fatalf("expected failed event, got %v", ev.Type)
	}
	if ev.Err == nil {
		t.Error("failed event carries no error")
	}
	if s.State() != models.StateFailed {
		t.Errorf("expected failed state, got %v", s.State())
	}
	if conn.closeCount() == 0 {
		t.Error("transport not released on failure")
	}

	// Failed behaves like closed for sends.
	s.Send("hello")
	select {
	case frame := <-conn.writes:
		t.Errorf("unexpected frame %q", frame)
	default:
	}
}

func TestSession_WriteErrorFails(t *testing.T) {
	conn := newMockConn()
	conn.writeErr = errors.New("broken pipe")
	s := dialMock(t, conn)

	nextEvent(t, s) // opened
	s.Send("hello")

	deadline := time.After(1 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type == EventFailed {
				return
			}
		case <-deadline:
			t.Fatal("no failed event after write error")
		}
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	conn := newMockConn()
	s := dialMock(t, conn)

	nextEvent(t, s) // opened
	s.Close()
	s.Close()

	if ev := nextEvent(t, s); ev.Type != EventClosed {
		t.Errorf("expected closed event, got %v", ev.Type)
	}
	if got := conn.closeCount(); got != 1 {
		t.Errorf("transport closed %d times, expected 1", got)
	}
}

// End-to-end against a real websocket server: query-parameter addressing,
// plain-text frames out, JSON frames in.
func TestDial_Gorilla(t *testing.T) {
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/chat" {
			http.NotFound(w, r)
			return
		}
		room := r.URL.Query().Get("room")
		user := r.URL.Query().Get("user")
		if room != "alice_bob" || user != "alice" {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = ws.Close() }()

		// Echo each text frame back as a recorded message.
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			msg := models.Message{ID: "1", User: user, Text: string(data), Room: room}
			if err := ws.WriteJSON(msg); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	s, err := Dial(context.Background(), wsURL, "alice_bob", "alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Close()

	if ev := nextEvent(t, s); ev.Type != EventOpened {
		t.Fatalf("expected opened event, got %v", ev.Type)
	}

	s.Send("privet")

	ev := nextEvent(t, s)
	if ev.Type != EventMessage {
		t.Fatalf("expected message event, got %v", ev.Type)
	}
	if ev.Message.Text != "privet" || ev.Message.User != "alice" {
		t.Errorf("unexpected echo: %+v", ev.Message)
	}
}
