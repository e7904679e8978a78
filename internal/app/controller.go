// Package app switches a client between onboarding and chat based on the
// server-reported onboarding status.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/user/connector/internal/chat"
	"github.com/user/connector/internal/identity"
	"github.com/user/connector/internal/onboarding"
	"github.com/user/connector/internal/types"
)

// WelcomeText is the scripted first message of a freshly onboarded session.
const WelcomeText = "Thanks for completing your profile! Based on what you told me, I found a few events you might like this weekend to get you started."

var (
	ErrNotOnboarding      = errors.New("not in onboarding mode")
	ErrNotChatting        = errors.New("not in chat mode")
	ErrAlreadyInitialized = errors.New("controller already initialized")
)

type Mode string

const (
	ModeLoading    Mode = "loading"
	ModeOnboarding Mode = "onboarding"
	ModeChat       Mode = "chat"
)

// Controller owns one client lifetime: New, Init, then Answer/RetrySubmit
// while onboarding and Send while chatting, then Close.
type Controller struct {
	backend    types.Backend
	identities *identity.Store
	chatOpts   []chat.Option

	mu         sync.Mutex
	mode       Mode
	identity   types.Identity
	onboarding *onboarding.Controller
	session    *chat.Session
}

// New creates a controller. chatOpts are applied to the chat session when
// it is created.
func New(backend types.Backend, identities *identity.Store, chatOpts ...chat.Option) *Controller {
	return &Controller{
		backend:    backend,
		identities: identities,
		chatOpts:   chatOpts,
		mode:       ModeLoading,
	}
}

// Init resolves the identity and queries onboarding status. A failed status
// query falls back to onboarding with no questions, which completes at once
// and lands the user in an empty chat.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.onboarding != nil {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	ob := onboarding.New(c.backend)
	c.onboarding = ob
	c.mu.Unlock()

	id := c.identities.GetOrCreate(ctx)

	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()

	if err := ob.Start(ctx, id); err != nil {
		slog.Warn("onboarding status unavailable, continuing without questions", "identity", string(id), "error", err)
		if err := ob.Begin(id, nil); err != nil {
			return err
		}
	}

	c.advance()
	return nil
}

// Answer forwards an onboarding answer and switches to chat once onboarding
// completes. Validation and submission errors from the onboarding
// controller are returned unchanged.
func (c *Controller) Answer(ctx context.Context, text string) error {
	ob, err := c.activeOnboarding()
	if err != nil {
		return err
	}
	err = ob.Answer(ctx, text)
	c.advance()
	return err
}

// RetrySubmit resubmits preserved answers after a failed submission.
func (c *Controller) RetrySubmit(ctx context.Context) error {
	ob, err := c.activeOnboarding()
	if err != nil {
		return err
	}
	err = ob.Retry(ctx)
	c.advance()
	return err
}

// Send forwards a chat message to the session.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return ErrNotChatting
	}
	return s.Send(ctx, text)
}

func (c *Controller) activeOnboarding() (*onboarding.Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeOnboarding {
		return nil, ErrNotOnboarding
	}
	return c.onboarding, nil
}

// advance moves to chat mode once onboarding is complete, seeding the
// session from the welcome payload when there is one.
func (c *Controller) advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return
	}
	if c.onboarding.State() != onboarding.StateComplete {
		c.mode = ModeOnboarding
		return
	}

	var seed *chat.Seed
	if welcome := c.onboarding.Welcome(); welcome != nil {
		seed = &chat.Seed{
			Messages: []types.Message{
				{ID: types.NewMessageID(), Sender: types.SenderAgent, Text: WelcomeText},
				{ID: types.NewMessageID(), Sender: types.SenderAgent, Text: welcome.ResponseText},
			},
			Events: welcome.Events,
		}
	}
	c.session = chat.NewSession(c.backend, c.identity, seed, c.chatOpts...)
	c.mode = ModeChat
	slog.Info("chat ready", "identity", string(c.identity), "seeded", seed != nil)
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Identity returns the resolved identity, empty before Init.
func (c *Controller) Identity() types.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Onboarding returns the onboarding controller, nil before Init.
func (c *Controller) Onboarding() *onboarding.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onboarding
}

// Session returns the chat session, nil until chat mode.
func (c *Controller) Session() *chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close ends the chat session, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Close()
	}
}
