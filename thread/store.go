package thread

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Options configures store construction.
type Options struct {
	// Load, when set, seeds the store once at construction. It is the load
	// half of the persistence callback contract and is never called again.
	Load func() []core.Message
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Store is the flat append-only message log. It is safe for concurrent use,
// but write exclusivity per recipient is the communication gate's job, not
// the store's: the store only guards its own internal consistency.
type Store struct {
	mu       sync.RWMutex
	messages []core.Message
	lastTS   int64
	logger   logging.Logger
}

// NewStore constructs a store, seeding it from the Load callback if one is
// configured.
func NewStore(optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{logger: opts.Logger}
	if opts.Load != nil {
		loaded := opts.Load()
		s.messages = make([]core.Message, len(loaded))
		copy(s.messages, loaded)
		for _, m := range loaded {
			if m.Timestamp > s.lastTS {
				s.lastTS = m.Timestamp
			}
		}
		s.logger.Debug("thread.store.loaded", "count", len(loaded))
	}
	return s
}

// Append stamps a timestamp if absent and pushes the message onto the log.
// The only validation is that the message carries a role or a type.
func (s *Store) Append(msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(msg)
}

// AppendMany appends messages in order. It stops at the first invalid
// message; messages appended before the failure stay in the log.
func (s *Store) AppendMany(msgs []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, msg := range msgs {
		if err := s.appendLocked(msg); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) appendLocked(msg core.Message) error {
	if msg.IsEmpty() {
		return fmt.Errorf("message requires a role or a type")
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = s.nextTimestampLocked()
	} else if msg.Timestamp > s.lastTS {
		s.lastTS = msg.Timestamp
	}
	s.messages = append(s.messages, msg)
	return nil
}

// nextTimestampLocked produces a strictly increasing millisecond stamp so
// appends within the same millisecond stay ordered.
func (s *Store) nextTimestampLocked() int64 {
	ts := core.NowMillis()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

// AllMessages returns a read-only snapshot of the full log in insertion
// order.
func (s *Store) AllMessages() []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make([]core.Message, len(s.messages))
	copy(snapshot, s.messages)
	return snapshot
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Conversation returns the ordered sub-sequence of the log belonging to the
// bidirectional thread between agent and callerAgent:
//
//	(Agent==agent AND CallerAgent==caller) OR (Agent==caller AND CallerAgent==agent)
//
// An empty caller means the human user.
func (s *Store) Conversation(agent, callerAgent string) []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var view []core.Message
	for _, m := range s.messages {
		if (m.Agent == agent && m.CallerAgent == callerAgent) ||
			(m.Agent == callerAgent && m.CallerAgent == agent) {
			view = append(view, m)
		}
	}
	return view
}

// ReplaceAll atomically swaps the entire log. Used by compaction and
// new-session flows.
func (s *Store) ReplaceAll(msgs []core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]core.Message, len(msgs))
	copy(s.messages, msgs)
	s.lastTS = 0
	for _, m := range msgs {
		if m.Timestamp > s.lastTS {
			s.lastTS = m.Timestamp
		}
	}
}

// Clear removes every message.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.lastTS = 0
}
