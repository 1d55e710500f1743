package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/mcpgate/internal/channel"
)

// Session is one subscriber's outbound queue.
type Session struct {
	id        string
	createdAt time.Time
	queue     *channel.Queue[Event]
}

func newSession(id string, cfg channel.QueueConfig) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
		queue:     channel.NewQueue[Event](cfg),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Next blocks until the next event is available. It returns
// channel.ErrClosed once the session has been unregistered.
func (s *Session) Next(ctx context.Context) (Event, error) {
	return s.queue.Pop(ctx)
}

// Push enqueues ev. See channel.Queue.Push for overflow semantics.
func (s *Session) Push(ev Event) (evicted bool, err error) {
	return s.queue.Push(ev)
}

// Pending returns the number of queued events.
func (s *Session) Pending() int { return s.queue.Len() }

// Stats returns the queue counters.
func (s *Session) Stats() channel.QueueStats { return s.queue.Stats() }

// Done is closed once the session is unregistered.
func (s *Session) Done() <-chan struct{} { return s.queue.Done() }

func (s *Session) close() int { return s.queue.Close() }

// NewID generates a session identifier (32 lowercase hex chars).
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
