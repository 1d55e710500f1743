package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpgate/internal/channel"
	"github.com/BaSui01/mcpgate/internal/metrics"
)

// Registry maps session ids to their outbound queues. A single mutex guards
// the map; queue contents are synchronized by each queue, so a slow consumer
// never blocks registry operations for other sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	queueConfig channel.QueueConfig
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records session and event counters on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Registry) { r.metrics = c }
}

// NewRegistry creates an empty registry whose sessions use queueConfig.
func NewRegistry(queueConfig channel.QueueConfig, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		sessions:    make(map[string]*Session),
		queueConfig: queueConfig,
		logger:      logger.With(zap.String("component", "session_registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register returns the session for id, creating it if absent. After Close it
// returns an already-closed session that is not tracked, so a stream attached
// during shutdown ends immediately.
func (r *Registry) Register(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := newSession(id, r.queueConfig)
	if r.closed {
		s.close()
		return s
	}
	r.sessions[id] = s
	r.metrics.RecordSessionOpened()
	r.logger.Debug("session registered", zap.String("session_id", id))
	return s
}

// Unregister removes the session and discards its pending events. It reports
// whether a session was removed; unknown ids are a no-op.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.release(s)
	return true
}

// Detach unregisters s only while it is still the live session for its id.
// A stream that outlived its session must not tear down a successor that was
// registered under the same id.
func (r *Registry) Detach(s *Session) bool {
	r.mu.Lock()
	cur, ok := r.sessions[s.id]
	if ok && cur == s {
		delete(r.sessions, s.id)
	}
	r.mu.Unlock()

	if !ok || cur != s {
		return false
	}
	r.release(s)
	return true
}

func (r *Registry) release(s *Session) {
	id := s.id
	discarded := s.close()
	r.metrics.RecordSessionClosed()
	if discarded > 0 {
		r.metrics.RecordEventsDropped("unregistered", discarded)
	}
	r.logger.Debug("session unregistered",
		zap.String("session_id", id),
		zap.Int("discarded", discarded),
		zap.Duration("age", time.Since(s.createdAt)),
	)
}

// Lookup returns the session for id without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Push delivers ev to the session named by ev.SessionID. Unknown sessions are
// dropped silently: push is best effort and never creates a session.
func (r *Registry) Push(ev Event) bool {
	s, ok := r.Lookup(ev.SessionID)
	if !ok {
		r.logger.Debug("push to unknown session dropped",
			zap.String("session_id", ev.SessionID),
			zap.String("type", string(ev.Type)),
		)
		return false
	}
	return r.Deliver(s, ev)
}

// Deliver enqueues ev onto s directly, bypassing the id lookup. Heartbeats
// use it so they never land on a successor session that reused the id.
func (r *Registry) Deliver(s *Session, ev Event) bool {
	evicted, err := s.Push(ev)
	switch {
	case errors.Is(err, channel.ErrClosed):
		// lost the race with Unregister
		return false
	case errors.Is(err, channel.ErrFull):
		r.metrics.RecordEventsDropped("queue_full", 1)
		r.logger.Warn("session queue full, event rejected",
			zap.String("session_id", ev.SessionID),
			zap.String("type", string(ev.Type)),
		)
		return false
	case err != nil:
		return false
	}
	if evicted {
		r.metrics.RecordEventsDropped("evicted", 1)
		r.logger.Warn("session queue full, oldest event evicted",
			zap.String("session_id", ev.SessionID),
		)
	}
	r.metrics.RecordEventQueued(string(ev.Type))
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs returns the live session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close unregisters every session, ending all attached streams.
func (r *Registry) Close() {
	r.mu.Lock()
	already := r.closed
	r.closed = true
	r.mu.Unlock()
	if already {
		return
	}

	for _, id := range r.IDs() {
		r.Unregister(id)
	}
	r.logger.Info("session registry closed")
}
