package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

var (
	// ErrSinkClosed is returned by Send after Close.
	ErrSinkClosed = errors.New("sink closed")

	// ErrSinkFull is returned when the connection is not draining its
	// buffer fast enough. The sink is closed at the same time.
	ErrSinkFull = errors.New("sink buffer full")
)

// ChannelSink buffers encoded events for a single streaming connection. The
// connection goroutine drains Frames and writes them to the wire.
type ChannelSink struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewChannelSink creates a sink that buffers up to size events.
func NewChannelSink(size int) *ChannelSink {
	if size < 1 {
		size = 1
	}
	return &ChannelSink{
		frames: make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

// Send encodes event immediately, so the payload reflects the document at
// the time of the call, and queues it without blocking. A sink that cannot
// keep up is closed, which ends its connection; the client recovers by
// reconnecting and fetching the whole document.
func (s *ChannelSink) Send(event model.SyncEvent) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	select {
	case <-s.done:
		return ErrSinkClosed
	case s.frames <- data:
		return nil
	default:
		s.Close()
		return ErrSinkFull
	}
}

// Frames returns the queue of encoded events.
func (s *ChannelSink) Frames() <-chan []byte {
	return s.frames
}

// Done is closed once the sink is closed.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}

// Close marks the sink as dead. It is safe to call more than once.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.done) })
}
