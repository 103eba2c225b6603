package streaming

import (
	"errors"
	"sync"
)

var (
	ErrSinkFull   = errors.New("streaming: sink buffer full")
	ErrSinkClosed = errors.New("streaming: sink closed")
)

// Sink receives frames for one live connection. Send must not block.
type Sink interface {
	Send(f Frame) error
	Close()
}

// ChannelSink buffers frames on a channel drained by the connection writer.
// A full buffer fails the send so a slow client never stalls delivery.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan Frame
	closed bool
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Frame, buffer)}
}

func (s *ChannelSink) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- f:
		return nil
	default:
		return ErrSinkFull
	}
}

// Frames is closed once the sink is closed.
func (s *ChannelSink) Frames() <-chan Frame {
	return s.ch
}

func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
