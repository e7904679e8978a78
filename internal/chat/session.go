// Package chat holds the conversation state for one client session: the
// append-only message log, the current event results, and the single
// in-flight request gate.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/connector/internal/types"
)

// FallbackText is appended as the agent reply when a send fails.
const FallbackText = "Oops! I had trouble connecting. Please try again."

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a message is already in flight")
	ErrNoIdentity   = errors.New("identity not resolved")
	ErrClosed       = errors.New("session closed")

	errNoReply = errors.New("backend returned no reply")
)

// State is a point-in-time copy of the session.
type State struct {
	Messages []types.Message
	Events   []types.Event
	Pending  bool
}

// Seed is the initial content of a session created after onboarding.
type Seed struct {
	Messages []types.Message
	Events   []types.Event
}

// Option configures optional behavior on a Session.
type Option func(*Session)

// WithObserver registers fn to receive a snapshot after every state change.
// fn is called without the session lock held.
func WithObserver(fn func(State)) Option {
	return func(s *Session) { s.observer = fn }
}

// Session is the chat state machine. At most one Send is in flight at a
// time; a Send issued while another is pending is rejected, not queued.
type Session struct {
	backend  types.Backend
	identity types.Identity
	gate     *semaphore.Weighted
	observer func(State)

	mu       sync.RWMutex
	messages []types.Message
	events   []types.Event
	pending  bool
	closed   bool
}

// NewSession creates a session for identity, optionally seeded.
func NewSession(backend types.Backend, identity types.Identity, seed *Seed, opts ...Option) *Session {
	s := &Session{
		backend:  backend,
		identity: identity,
		gate:     semaphore.NewWeighted(1),
	}
	if seed != nil {
		s.messages = append([]types.Message(nil), seed.Messages...)
		s.events = append([]types.Event(nil), seed.Events...)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send appends a user message, clears the current events, and asks the
// backend for a reply. It blocks until the reply (or failure) is folded
// into state. A nil return means the message was accepted; exactly one
// agent message is appended for it, the fallback text on any backend
// failure. Precondition failures return an error and change nothing.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if s.identity == "" {
		return ErrNoIdentity
	}
	if !s.gate.TryAcquire(1) {
		return ErrBusy
	}
	defer s.gate.Release(1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.messages = append(s.messages, types.Message{
		ID:     types.NewMessageID(),
		Sender: types.SenderUser,
		Text:   text,
	})
	s.pending = true
	s.events = nil
	s.mu.Unlock()
	s.notify()

	reply, err := s.backend.Chat(ctx, s.identity, text)
	if err == nil && reply == nil {
		err = errNoReply
	}

	s.mu.Lock()
	if err != nil {
		slog.Error("chat send failed", "identity", string(s.identity), "error", err)
		s.messages = append(s.messages, types.Message{
			ID:     types.NewMessageID(),
			Sender: types.SenderAgent,
			Text:   FallbackText,
		})
	} else {
		s.messages = append(s.messages, types.Message{
			ID:     types.NewMessageID(),
			Sender: types.SenderAgent,
			Text:   reply.ResponseText,
		})
		if len(reply.Events) > 0 {
			s.events = append([]types.Event(nil), reply.Events...)
		}
		slog.Debug("chat reply received", "identity", string(s.identity), "events", len(reply.Events))
	}
	s.pending = false
	s.mu.Unlock()
	s.notify()

	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Session) snapshot() State {
	return State{
		Messages: append([]types.Message(nil), s.messages...),
		Events:   append([]types.Event(nil), s.events...),
		Pending:  s.pending,
	}
}

// Identity returns the identity this session sends as.
func (s *Session) Identity() types.Identity {
	return s.identity
}

// Close ends the session. Later sends are rejected; a send already in
// flight still applies its result.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) notify() {
	if s.observer == nil {
		return
	}
	s.observer(s.Snapshot())
}
