// Package live manages one persistent duplex connection to the messaging
// backend. A Session is a small state machine (connecting, open, closed,
// failed) that turns the transport's callbacks into a single ordered event
// stream. Sessions never reconnect on their own; redialing is the caller's
// decision.
package live

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tolkuchka/internal/models"
)

// Event buffer is sized for a UI consumer that drains promptly; message
// events apply backpressure instead of being dropped.
const eventBuffer = 64

type EventType string

const (
	EventOpened  EventType = "opened"
	EventMessage EventType = "message"
	EventFailed  EventType = "failed"
	EventClosed  EventType = "closed"
)

// Event is one entry in a session's event stream. Message is set for
// EventMessage, Err for EventFailed. EventFailed and EventClosed are
// terminal: nothing follows them.
type Event struct {
	Type    EventType
	Message models.Message
	Err     error
}

type wsConn interface {
	ReadJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type dialFunc func(ctx context.Context, endpoint string) (wsConn, error)

type Session struct {
	id     string
	room   string
	handle string

	mu    sync.Mutex
	state models.ConnectionState
	conn  wsConn

	events   chan Event
	done     chan struct{}
	doneOnce sync.Once
}

// Dial opens a websocket session for the room. Room and handle travel as
// query parameters, so the server can route and authorize the stream without
// a separate handshake message. On handshake failure no session is returned.
func Dial(ctx context.Context, wsURL, roomID, handle string) (*Session, error) {
	return dial(ctx, gorillaDial, wsURL, roomID, handle)
}

func dial(ctx context.Context, connect dialFunc, wsURL, roomID, handle string) (*Session, error) {
	if roomID == "" || handle == "" {
		return nil, models.ErrInvalidHandle
	}

	s := &Session{
		id:     uuid.NewString(),
		room:   roomID,
		handle: handle,
		state:  models.StateConnecting,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}

	endpoint := fmt.Sprintf("%s/ws/chat?room=%s&user=%s",
		wsURL, url.QueryEscape(roomID), url.QueryEscape(handle))

	conn, err := connect(ctx, endpoint)
	if err != nil {
		s.state = models.StateFailed
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}

	s.conn = conn
	s.state = models.StateOpen
	s.events <- Event{Type: EventOpened}

	go s.pump()

	log.Debug().Str("session", s.id).Str("room", roomID).Str("user", s.handle).Msg("live session open")
	return s, nil
}

func gorillaDial(ctx context.Context, endpoint string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Room() string { return s.room }

// Events returns the session's ordered event stream. The channel is never
// closed; EventFailed and EventClosed mark the end of the stream.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) State() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send transmits the trimmed text as one plain-text frame. Blank text, or a
// session that is not open, makes the call a no-op: being disconnected is a
// normal condition, not a fault. The message is not echoed locally; the
// server delivers the recorded copy back through the event stream.
func (s *Session) Send(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state != models.StateOpen {
		log.Debug().Str("session", s.id).Str("state", string(state)).Msg("dropping send, session not open")
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(trimmed)); err != nil {
		s.fail(fmt.Errorf("write: %w", err))
	}
}

// Close moves the session to closed from any state and releases the
// transport. It is idempotent; the transport is closed at most once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == models.StateClosed || s.state == models.StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = models.StateClosed
	conn := s.conn
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
	if conn != nil {
		_ = conn.Close()
	}
	s.emit(Event{Type: EventClosed})
	log.Debug().Str("session", s.id).Str("room", s.room).Msg("live session closed")
}

// pump reads inbound frames and forwards them in arrival order. A read error
// while open moves the session to failed; after Close the error is the
// normal teardown path and stays silent.
func (s *Session) pump() {
	for {
		var msg models.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.fail(fmt.Errorf("read: %w", err))
			return
		}

		select {
		case s.events <- Event{Type: EventMessage, Message: msg}:
		case <-s.done:
			return
		}
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state != models.StateOpen && s.state != models.StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = models.StateFailed
	conn := s.conn
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
	if conn != nil {
		_ = conn.Close()
	}
	log.Warn().Err(err).Str("session", s.id).Str("room", s.room).Msg("live session failed")
	s.emit(Event{Type: EventFailed, Err: err})
}

// emit delivers lifecycle events without ever blocking a dying session.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Debug().Str("session", s.id).Str("type", string(ev.Type)).Msg("event buffer full, dropping")
	}
}
