package realtime

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Stream is a subscriber backed by a buffered channel, drained by an SSE
// handler.
type Stream struct {
	ID string

	mu     sync.Mutex
	events chan []byte
	closed bool
}

// NewStream creates a Stream buffering up to size events.
func NewStream(size int) *Stream {
	if size <= 0 {
		size = sendBuffer
	}
	return &Stream{ID: uuid.NewString(), events: make(chan []byte, size)}
}

// SubscriberID returns the stream ID.
func (s *Stream) SubscriberID() string { return s.ID }

// Events returns the channel of encoded events. It is closed when the
// stream closes.
func (s *Stream) Events() <-chan []byte { return s.events }

// Send enqueues payload. A full buffer closes the stream.
func (s *Stream) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.events <- payload:
		return nil
	default:
		s.closeLocked()
		return ErrSlowConsumer
	}
}

// Close closes the stream. The code and reason are ignored.
func (s *Stream) Close(int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// WriteSSE writes one server-sent event with an already-encoded JSON body.
func WriteSSE(w io.Writer, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
