// Package conversation owns the ordered message log of one open
// conversation view. The log merges two sources: a one-shot history
// snapshot and the live event stream. History always comes first in the
// visible log, even when live messages arrive before the snapshot settles.
package conversation

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"tolkuchka/internal/live"
	"tolkuchka/internal/models"
)

// Loader is the history collaborator. A fetch failure degrades to an empty
// snapshot; it never prevents the conversation from opening.
type Loader interface {
	Fetch(ctx context.Context, roomID, handle string) ([]models.Message, error)
}

// Live is the subset of a live session the store drives.
type Live interface {
	Events() <-chan live.Event
	Send(text string)
	Close()
}

// DialFunc opens the live session for a room. Swapped in tests.
type DialFunc func(ctx context.Context, roomID, handle string) (Live, error)

type Store struct {
	room   string
	handle string

	mu           sync.Mutex
	log          []models.Message
	pending      []models.Message
	snapshotDone bool
	state        models.ConnectionState
	session      Live
	torn         bool

	updates  chan struct{}
	tearOnce sync.Once
}

// Open starts the history fetch and the live dial concurrently and returns
// immediately; the log fills in as both settle. The caller must call
// Teardown exactly when the view goes away (calling it more than once is
// harmless).
func Open(ctx context.Context, roomID, handle string, loader Loader, dial DialFunc) *Store {
	s := &Store{
		room:    roomID,
		handle:  handle,
		state:   models.StateConnecting,
		updates: make(chan struct{}, 1),
	}

	go s.loadSnapshot(ctx, loader)
	go s.runLive(ctx, dial)

	return s
}

func (s *Store) Room() string { return s.room }

// Messages returns a copy of the visible log: the history snapshot followed
// by live messages in arrival order. Live messages stay invisible until the
// snapshot has been applied.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.log))
	copy(out, s.log)
	return out
}

// Updates signals log and state changes. The channel is coalescing: one
// pending signal stands for any number of changes.
func (s *Store) Updates() <-chan struct{} { return s.updates }

func (s *Store) State() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send hands the text to the live session. There is no optimistic local
// append: the message shows up once the server echoes it back, which keeps
// the server the single source of truth for what was recorded.
func (s *Store) Send(text string) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		log.Debug().Str("room", s.room).Msg("dropping send, no live session")
		return
	}
	session.Send(text)
}

// Teardown closes the live session and freezes the log. Idempotent.
func (s *Store) Teardown() {
	s.tearOnce.Do(func() {
		s.mu.Lock()
		s.torn = true
		session := s.session
		s.mu.Unlock()

		if session != nil {
			session.Close()
		}
	})
}

func (s *Store) loadSnapshot(ctx context.Context, loader Loader) {
	snapshot, err := loader.Fetch(ctx, s.room, s.handle)
	if err != nil {
		log.Warn().Err(err).Str("room", s.room).Msg("history fetch failed, starting empty")
		snapshot = nil
	}

	s.mu.Lock()
	// Snapshot first, then whatever the live stream delivered in the
	// meantime, preserving arrival order within each source.
	s.log = append(snapshot, s.pending...)
	s.pending = nil
	s.snapshotDone = true
	s.mu.Unlock()

	s.notify()
}

func (s *Store) runLive(ctx context.Context, dial DialFunc) {
	session, err := dial(ctx, s.room, s.handle)
	if err != nil {
		log.Warn().Err(err).Str("room", s.room).Msg("live dial failed")
		s.setState(models.StateFailed)
		return
	}

	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		session.Close()
		s.setState(models.StateClosed)
		return
	}
	s.session = session
	s.mu.Unlock()

	// The event channel is never closed; the terminal Failed/Closed events
	// are the exit points.
	for ev := range session.Events() {
		switch ev.Type {
		case live.EventOpened:
			s.setState(models.StateOpen)
		case live.EventMessage:
			s.appendLive(ev.Message)
		case live.EventFailed:
			s.setState(models.StateFailed)
			return
		case live.EventClosed:
			s.setState(models.StateClosed)
			return
		}
	}
}

func (s *Store) appendLive(msg models.Message) {
	s.mu.Lock()
	if s.snapshotDone {
		s.log = append(s.log, msg)
	} else {
		s.pending = append(s.pending, msg)
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) setState(state models.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.notify()
}

func (s *Store) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
