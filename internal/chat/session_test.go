package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/user/connector/internal/api"
	"github.com/user/connector/internal/types"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    int
	lastText string
	reply    *types.ChatReply
	err      error

	// When started is non-nil, Chat signals on it and waits for release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeBackend) StartOnboarding(context.Context, types.Identity) (*types.OnboardingStatus, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) SubmitOnboarding(context.Context, types.Identity, map[string]string) (*types.ChatReply, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) Chat(_ context.Context, _ types.Identity, message string) (*types.ChatReply, error) {
	f.mu.Lock()
	f.calls++
	f.lastText = message
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.reply, f.err
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var ignoreIDs = cmpopts.IgnoreFields(types.Message{}, "ID")

func TestSendSuccessReplacesEvents(t *testing.T) {
	backend := &fakeBackend{reply: &types.ChatReply{
		ResponseText: "Here are some concerts",
		Events:       []types.Event{{Title: "Jazz night", Date: "2025-06-01", URL: "https://example.com/jazz"}},
	}}
	seed := &Seed{Events: []types.Event{{Title: "Old", URL: "https://example.com/old"}}}
	s := NewSession(backend, "user-1", seed)

	if err := s.Send(context.Background(), "Find concerts"); err != nil {
		t.Fatal(err)
	}

	got := s.Snapshot()
	want := State{
		Messages: []types.Message{
			{Sender: types.SenderUser, Text: "Find concerts"},
			{Sender: types.SenderAgent, Text: "Here are some concerts"},
		},
		Events: backend.reply.Events,
	}
	if diff := cmp.Diff(want, got, ignoreIDs); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if got.Messages[0].ID == "" || got.Messages[0].ID == got.Messages[1].ID {
		t.Error("expected unique non-empty message IDs")
	}
}

func TestSendZeroEventsLeavesEventsEmpty(t *testing.T) {
	backend := &fakeBackend{reply: &types.ChatReply{ResponseText: "Your profile says you like hiking."}}
	seed := &Seed{Events: []types.Event{{Title: "Seeded", URL: "https://example.com/seeded"}}}
	s := NewSession(backend, "user-1", seed)

	s.Send(context.Background(), "What do you know about me?")

	if events := s.Snapshot().Events; len(events) != 0 {
		t.Errorf("expected events cleared and not restored, got %+v", events)
	}
}

func TestSendBackendStatusErrorAppendsFallback(t *testing.T) {
	backend := &fakeBackend{err: &api.StatusError{Endpoint: "/chat", StatusCode: http.StatusInternalServerError}}
	seed := &Seed{Events: []types.Event{{Title: "Seeded", URL: "x"}}}
	s := NewSession(backend, "user-1", seed)

	if err := s.Send(context.Background(), "Find concerts"); err != nil {
		t.Fatalf("backend failures must not escape Send, got %v", err)
	}

	got := s.Snapshot()
	want := State{
		Messages: []types.Message{
			{Sender: types.SenderUser, Text: "Find concerts"},
			{Sender: types.SenderAgent, Text: FallbackText},
		},
		Events: []types.Event{},
	}
	if diff := cmp.Diff(want, got, ignoreIDs, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSendNilReplyAppendsFallback(t *testing.T) {
	s := NewSession(&fakeBackend{}, "user-1", nil)

	if err := s.Send(context.Background(), "Find concerts"); err != nil {
		t.Fatalf("backend failures must not escape Send, got %v", err)
	}

	got := s.Snapshot()
	want := State{
		Messages: []types.Message{
			{Sender: types.SenderUser, Text: "Find concerts"},
			{Sender: types.SenderAgent, Text: FallbackText},
		},
	}
	if diff := cmp.Diff(want, got, ignoreIDs, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSendPreconditions(t *testing.T) {
	cases := []struct {
		name     string
		identity types.Identity
		text     string
		want     error
	}{
		{"empty", "user-1", "", ErrEmptyMessage},
		{"whitespace", "user-1", "   \n", ErrEmptyMessage},
		{"no identity", "", "hello", ErrNoIdentity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{reply: &types.ChatReply{ResponseText: "x"}}
			s := NewSession(backend, tc.identity, nil)

			if err := s.Send(context.Background(), tc.text); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if n := len(s.Snapshot().Messages); n != 0 {
				t.Errorf("expected no messages, got %d", n)
			}
			if backend.callCount() != 0 {
				t.Error("expected no request")
			}
		})
	}
}

func TestSendWhilePendingIsRejected(t *testing.T) {
	backend := &fakeBackend{
		reply:   &types.ChatReply{ResponseText: "done", Events: []types.Event{{Title: "E", URL: "e"}}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := NewSession(backend, "user-1", nil)

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "first") }()
	<-backend.started

	before := s.Snapshot()
	if !before.Pending {
		t.Fatal("expected pending while request in flight")
	}

	for i := 0; i < 3; i++ {
		if err := s.Send(context.Background(), fmt.Sprintf("second %d", i)); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy, got %v", err)
		}
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("rejected send changed state (-before +after):\n%s", diff)
	}

	close(backend.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	after := s.Snapshot()
	if after.Pending {
		t.Error("expected pending false after resolution")
	}
	if len(after.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(after.Messages))
	}
	if backend.callCount() != 1 {
		t.Errorf("expected exactly 1 request, got %d", backend.callCount())
	}
}

func TestConcurrentSendsOneAccepted(t *testing.T) {
	backend := &fakeBackend{
		reply:   &types.ChatReply{ResponseText: "ok"},
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	s := NewSession(backend, "user-1", nil)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- s.Send(context.Background(), fmt.Sprintf("msg %d", i))
		}(i)
	}

	<-backend.started
	close(backend.release)
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrBusy):
		default:
			t.Errorf("unexpected error %v", err)
		}
	}

	// Late senders may find the gate free again, but every accepted send
	// yields exactly one user and one agent message, in order.
	msgs := s.Snapshot().Messages
	if len(msgs) != 2*accepted {
		t.Fatalf("expected %d messages, got %d", 2*accepted, len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Sender != types.SenderUser || msgs[i+1].Sender != types.SenderAgent {
			t.Errorf("messages %d,%d out of order: %s,%s", i, i+1, msgs[i].Sender, msgs[i+1].Sender)
		}
	}
	if backend.callCount() != accepted {
		t.Errorf("expected %d requests, got %d", accepted, backend.callCount())
	}
}

func TestObserverSeesPendingTransitions(t *testing.T) {
	backend := &fakeBackend{reply: &types.ChatReply{ResponseText: "hi"}}

	var seen []bool
	s := NewSession(backend, "user-1", nil, WithObserver(func(st State) {
		seen = append(seen, st.Pending)
	}))

	s.Send(context.Background(), "hello")

	if diff := cmp.Diff([]bool{true, false}, seen); diff != "" {
		t.Errorf("pending transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestSeedIsCopied(t *testing.T) {
	seed := &Seed{
		Messages: []types.Message{{ID: "1", Sender: types.SenderAgent, Text: "welcome"}},
		Events:   []types.Event{{Title: "A", URL: "a"}},
	}
	s := NewSession(&fakeBackend{}, "u", seed)
	seed.Messages[0].Text = "mutated"

	if got := s.Snapshot().Messages[0].Text; got != "welcome" {
		t.Errorf("expected seed copied, got %q", got)
	}
}

func TestSendAfterClose(t *testing.T) {
	backend := &fakeBackend{reply: &types.ChatReply{ResponseText: "x"}}
	s := NewSession(backend, "u", nil)
	s.Close()

	if err := s.Send(context.Background(), "hello"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Error("expected no request after close")
	}
}
