package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// ErrClosed is returned by Send after the consumer detached via Close.
// Producers treat it as "stop delivering, keep computing": the run still
// finishes and settles its Result in the background.
var ErrClosed = errors.New("stream: consumer closed")

// Stream is a pull-based event source paired with a deferred final-result
// slot. The consumer drives the pace by ranging over Events; the terminal
// outcome arrives through Result/Wait and survives early abandonment of the
// iteration.
type Stream struct {
	events    chan Event
	result    *Result
	closed    chan struct{}
	closeOnce sync.Once
	sendOnce  sync.Once
}

// New creates a stream with the given event buffer size.
func New(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 16
	}
	return &Stream{
		events: make(chan Event, buffer),
		result: NewResult(),
		closed: make(chan struct{}),
	}
}

// Events returns the channel the consumer ranges over. It is closed by the
// producer when no more events will be delivered.
func (s *Stream) Events() <-chan Event { return s.events }

// Result returns the deferred final-result slot.
func (s *Stream) Result() *Result { return s.result }

// Wait blocks until the run's terminal outcome settles. It may be called
// whether or not events were consumed.
func (s *Stream) Wait(ctx context.Context) (*core.RunResult, error) {
	return s.result.Wait(ctx)
}

// Send delivers an event to the consumer. It returns ErrClosed once the
// consumer detached and ctx.Err after cancellation; in both cases the
// producer should stop sending but continue the run to completion.
func (s *Stream) Send(ctx context.Context, ev Event) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseSend is called by the producer when the run emitted its last event.
func (s *Stream) CloseSend() {
	s.sendOnce.Do(func() { close(s.events) })
}

// Close detaches the consumer. Undelivered events are dropped; the Result
// still settles in the background and remains retrievable via Wait.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Done returns a channel closed once the consumer detached.
func (s *Stream) Done() <-chan struct{} { return s.closed }
