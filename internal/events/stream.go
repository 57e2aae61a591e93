package events

import (
	"context"
	"sync"
	"time"

	"mentor/internal/metrics"
	"mentor/pkg/logger"
)

// Publisher is the loop's outbound event sink. Publish returns the event as
// stamped onto the session sequence.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, ev Event) Event
}

// Stream fans session events out to at most one attached client per session,
// preserving publish order. Delivery is best-effort: events published while
// no client is attached, or while the client's buffer is full, are dropped —
// the durable state record is the recovery path for a disconnected client.
type Stream struct {
	mu       sync.Mutex
	sessions map[string]*sessionStream
	buffer   int
	audit    *AuditPublisher
	log      *logger.Logger
}

type sessionStream struct {
	seq        uint64
	subscriber chan Event
}

// NewStream creates an event stream hub. audit may be nil.
func NewStream(buffer int, audit *AuditPublisher) *Stream {
	if buffer <= 0 {
		buffer = 256
	}
	return &Stream{
		sessions: make(map[string]*sessionStream),
		buffer:   buffer,
		audit:    audit,
		log:      logger.Get().With("component", "event_stream"),
	}
}

// Publish appends an event to the session's sequence. Events are delivered
// to the attached subscriber in publish order; a later event can never
// overtake an earlier one because sequencing and channel send happen under
// the same lock.
func (s *Stream) Publish(ctx context.Context, sessionID string, ev Event) Event {
	s.mu.Lock()

	ss := s.sessions[sessionID]
	if ss == nil {
		ss = &sessionStream{}
		s.sessions[sessionID] = ss
	}

	ss.seq++
	ev.SessionID = sessionID
	ev.Seq = ss.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	delivered := false
	if ss.subscriber != nil {
		select {
		case ss.subscriber <- ev:
			delivered = true
		default:
			// Slow client: dropping keeps order for what is delivered
		}
	}
	s.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	if !delivered {
		metrics.EventsDropped.Inc()
	}

	if s.audit != nil {
		s.audit.Record(ctx, ev)
	}

	return ev
}

// Subscribe attaches a client to a session's stream and returns its event
// channel plus a detach function. A new subscriber replaces any previous
// one, whose channel is closed.
func (s *Stream) Subscribe(sessionID string) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss := s.sessions[sessionID]
	if ss == nil {
		ss = &sessionStream{}
		s.sessions[sessionID] = ss
	}

	if ss.subscriber != nil {
		close(ss.subscriber)
	}

	ch := make(chan Event, s.buffer)
	ss.subscriber = ch

	detach := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ss.subscriber == ch {
			ss.subscriber = nil
			close(ch)
		}
	}

	return ch, detach
}

// Drop discards the session's stream bookkeeping. Called when a session is
// closed or garbage-collected.
func (s *Stream) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ss := s.sessions[sessionID]; ss != nil && ss.subscriber != nil {
		close(ss.subscriber)
		ss.subscriber = nil
	}
	delete(s.sessions, sessionID)
}
