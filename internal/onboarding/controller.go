// Package onboarding walks a new user through the intake questions and
// submits the collected answers exactly once.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/user/connector/internal/types"
)

// MinAnswerLength is the minimum answer length in characters, after trimming.
const MinAnswerLength = 2

var (
	ErrAnswerTooShort = errors.New("answer too short")
	ErrNotPending     = errors.New("onboarding is not awaiting answers")
	ErrNotFailed      = errors.New("no failed submission to retry")
	ErrAlreadyStarted = errors.New("onboarding already started")

	errNoReply = errors.New("backend returned no reply")
)

// State is the controller's lifecycle state. Transitions only move forward,
// except Failed which returns to Submitting on retry.
type State string

const (
	StateLoading    State = "loading"
	StatePending    State = "pending"
	StateSubmitting State = "submitting"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Controller is the onboarding state machine.
type Controller struct {
	backend types.Backend

	mu        sync.Mutex
	state     State
	identity  types.Identity
	questions []types.Question
	index     int
	answers   map[string]string
	welcome   *types.ChatReply
}

// New creates a controller in the Loading state.
func New(backend types.Backend) *Controller {
	return &Controller{
		backend: backend,
		state:   StateLoading,
	}
}

// Start queries the onboarding status for id. A user who already completed
// onboarding moves straight to Complete with no welcome payload. On error the
// controller stays in Loading so the caller can pick a fallback.
func (c *Controller) Start(ctx context.Context, id types.Identity) error {
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	status, err := c.backend.StartOnboarding(ctx, id)
	if err != nil {
		return fmt.Errorf("query onboarding status: %w", err)
	}

	if status.Status == types.OnboardingComplete {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.identity = id
		c.state = StateComplete
		slog.Debug("onboarding already complete", "identity", string(id))
		return nil
	}
	return c.Begin(id, status.Questions)
}

// Begin enters Pending with the given ordered questions. An empty list
// completes immediately without contacting the backend.
func (c *Controller) Begin(id types.Identity, questions []types.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLoading {
		return ErrAlreadyStarted
	}

	c.identity = id
	if len(questions) == 0 {
		c.state = StateComplete
		slog.Debug("onboarding has no questions, completing", "identity", string(id))
		return nil
	}

	c.questions = append([]types.Question(nil), questions...)
	c.index = 0
	c.answers = make(map[string]string, len(questions))
	c.state = StatePending
	slog.Debug("onboarding pending", "identity", string(id), "questions", len(questions))
	return nil
}

// Answer records text for the current question. Answers shorter than
// MinAnswerLength are rejected with ErrAnswerTooShort and change nothing.
// Answering the last question submits the full answer set; a submission
// failure leaves the controller in Failed with every answer preserved.
func (c *Controller) Answer(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.state != StatePending {
		c.mu.Unlock()
		return ErrNotPending
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinAnswerLength {
		c.mu.Unlock()
		return ErrAnswerTooShort
	}

	q := c.questions[c.index]
	c.answers[q.ID] = text

	if c.index < len(c.questions)-1 {
		c.index++
		c.mu.Unlock()
		return nil
	}

	c.state = StateSubmitting
	c.mu.Unlock()
	return c.submit(ctx)
}

// Retry resubmits the preserved answers after a failed submission.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateFailed {
		c.mu.Unlock()
		return ErrNotFailed
	}
	c.state = StateSubmitting
	c.mu.Unlock()
	return c.submit(ctx)
}

// submit sends the answer set. Caller must have moved state to Submitting.
func (c *Controller) submit(ctx context.Context) error {
	c.mu.Lock()
	id := c.identity
	answers := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	c.mu.Unlock()

	reply, err := c.backend.SubmitOnboarding(ctx, id, answers)
	if err == nil && reply == nil {
		err = errNoReply
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		slog.Error("onboarding submission failed", "identity", string(id), "error", err)
		return fmt.Errorf("submit onboarding: %w", err)
	}

	c.state = StateComplete
	c.welcome = reply
	c.questions = nil
	c.answers = nil
	slog.Info("onboarding complete", "identity", string(id), "events", len(reply.Events))
	return nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the question awaiting an answer. ok is false outside Pending.
func (c *Controller) Current() (q types.Question, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePending {
		return types.Question{}, false
	}
	return c.questions[c.index], true
}

// Progress returns the zero-based index of the current question and the total.
func (c *Controller) Progress() (index, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index, len(c.questions)
}

// IsLast reports whether the current question is the final one.
func (c *Controller) IsLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePending && c.index == len(c.questions)-1
}

// Answers returns a copy of the answers recorded so far.
func (c *Controller) Answers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		out[k] = v
	}
	return out
}

// Welcome returns the submission reply, or nil when onboarding completed
// without a submission.
func (c *Controller) Welcome() *types.ChatReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}
