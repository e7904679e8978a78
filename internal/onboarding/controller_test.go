package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/user/connector/internal/types"
)

type fakeBackend struct {
	status    *types.OnboardingStatus
	statusErr error

	reply       *types.ChatReply
	submitErr   error
	submitCalls int
	lastAnswers map[string]string
	lastID      types.Identity
}

func (f *fakeBackend) StartOnboarding(context.Context, types.Identity) (*types.OnboardingStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeBackend) SubmitOnboarding(_ context.Context, id types.Identity, answers map[string]string) (*types.ChatReply, error) {
	f.submitCalls++
	f.lastID = id
	f.lastAnswers = answers
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.reply, nil
}

func (f *fakeBackend) Chat(context.Context, types.Identity, string) (*types.ChatReply, error) {
	return nil, errors.New("not used")
}

func twoQuestions() []types.Question {
	return []types.Question{
		{ID: "q1", Text: "What do you like to do?", Placeholder: "hiking"},
		{ID: "q2", Text: "Anything else?", Placeholder: "..."},
	}
}

func TestTwoQuestionFlow(t *testing.T) {
	backend := &fakeBackend{
		status: &types.OnboardingStatus{Status: types.OnboardingPending, Questions: twoQuestions()},
		reply: &types.ChatReply{
			ResponseText: "Found 2 events",
			Events:       []types.Event{{Title: "A", URL: "a"}, {Title: "B", URL: "b"}},
		},
	}
	c := New(backend)
	ctx := context.Background()

	if err := c.Start(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	if c.State() != StatePending {
		t.Fatalf("expected pending, got %s", c.State())
	}

	if err := c.Answer(ctx, "I like hiking"); err != nil {
		t.Fatal(err)
	}
	if idx, _ := c.Progress(); idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
	if !c.IsLast() {
		t.Error("expected last question")
	}
	if backend.submitCalls != 0 {
		t.Error("expected no submission before last answer")
	}

	if err := c.Answer(ctx, "ok"); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateComplete {
		t.Fatalf("expected complete, got %s", c.State())
	}
	if backend.submitCalls != 1 {
		t.Errorf("expected exactly one submission, got %d", backend.submitCalls)
	}
	if backend.lastID != "user-1" {
		t.Errorf("expected submission for user-1, got %s", backend.lastID)
	}
	if backend.lastAnswers["q1"] != "I like hiking" || backend.lastAnswers["q2"] != "ok" {
		t.Errorf("unexpected answers %v", backend.lastAnswers)
	}
	welcome := c.Welcome()
	if welcome == nil || welcome.ResponseText != "Found 2 events" || len(welcome.Events) != 2 {
		t.Errorf("unexpected welcome %+v", welcome)
	}
}

func TestAnswerTooShort(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend)
	if err := c.Begin("user-1", twoQuestions()); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"", " ", "a", "  b  ", "\n\t"} {
		if err := c.Answer(context.Background(), text); !errors.Is(err, ErrAnswerTooShort) {
			t.Errorf("Answer(%q): expected ErrAnswerTooShort, got %v", text, err)
		}
	}

	if idx, _ := c.Progress(); idx != 0 {
		t.Errorf("expected index unchanged at 0, got %d", idx)
	}
	if c.State() != StatePending {
		t.Errorf("expected pending, got %s", c.State())
	}
	if len(c.Answers()) != 0 {
		t.Errorf("expected no answers recorded, got %v", c.Answers())
	}
	if backend.submitCalls != 0 {
		t.Error("expected no request for rejected answers")
	}
}

func TestMultibyteAnswerCountsCharacters(t *testing.T) {
	c := New(&fakeBackend{reply: &types.ChatReply{}})
	c.Begin("u", twoQuestions())

	if err := c.Answer(context.Background(), "é"); !errors.Is(err, ErrAnswerTooShort) {
		t.Errorf("expected single character to be rejected, got %v", err)
	}
	if err := c.Answer(context.Background(), "éé"); err != nil {
		t.Errorf("expected two characters to be accepted, got %v", err)
	}
}

func TestSubmissionFailurePreservesAnswers(t *testing.T) {
	backend := &fakeBackend{submitErr: errors.New("connection refused")}
	c := New(backend)
	ctx := context.Background()
	c.Begin("user-1", twoQuestions())

	c.Answer(ctx, "I like hiking")
	if err := c.Answer(ctx, "jazz clubs"); err == nil {
		t.Fatal("expected submission error")
	}
	if c.State() != StateFailed {
		t.Fatalf("expected failed, got %s", c.State())
	}

	answers := c.Answers()
	if answers["q1"] != "I like hiking" || answers["q2"] != "jazz clubs" {
		t.Errorf("expected answers preserved, got %v", answers)
	}

	// Answering again is not allowed; retry resubmits without re-asking.
	if err := c.Answer(ctx, "again"); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}

	backend.submitErr = nil
	backend.reply = &types.ChatReply{ResponseText: "welcome"}
	if err := c.Retry(ctx); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateComplete {
		t.Errorf("expected complete after retry, got %s", c.State())
	}
	if backend.submitCalls != 2 {
		t.Errorf("expected 2 submissions, got %d", backend.submitCalls)
	}
	if backend.lastAnswers["q1"] != "I like hiking" {
		t.Errorf("expected retry to resend original answers, got %v", backend.lastAnswers)
	}
}

func TestSubmissionNilReplyFails(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend)
	ctx := context.Background()
	c.Begin("user-1", twoQuestions())

	c.Answer(ctx, "I like hiking")
	if err := c.Answer(ctx, "jazz clubs"); err == nil {
		t.Fatal("expected error for empty reply")
	}
	if c.State() != StateFailed {
		t.Fatalf("expected failed, got %s", c.State())
	}
	if c.Welcome() != nil {
		t.Error("expected no welcome payload")
	}
	if answers := c.Answers(); answers["q2"] != "jazz clubs" {
		t.Errorf("expected answers preserved, got %v", answers)
	}
}

func TestRetryOutsideFailed(t *testing.T) {
	c := New(&fakeBackend{})
	c.Begin("u", twoQuestions())
	if err := c.Retry(context.Background()); !errors.Is(err, ErrNotFailed) {
		t.Errorf("expected ErrNotFailed, got %v", err)
	}
}

func TestStartAlreadyComplete(t *testing.T) {
	backend := &fakeBackend{status: &types.OnboardingStatus{Status: types.OnboardingComplete}}
	c := New(backend)

	if err := c.Start(context.Background(), "returning"); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateComplete {
		t.Errorf("expected complete, got %s", c.State())
	}
	if c.Welcome() != nil {
		t.Error("expected no welcome payload for returning user")
	}
	if _, ok := c.Current(); ok {
		t.Error("expected no current question")
	}
}

func TestEmptyQuestionsCompleteImmediately(t *testing.T) {
	backend := &fakeBackend{status: &types.OnboardingStatus{Status: types.OnboardingPending}}
	c := New(backend)

	if err := c.Start(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateComplete {
		t.Errorf("expected complete, got %s", c.State())
	}
	if backend.submitCalls != 0 {
		t.Error("expected no submission for empty question list")
	}
}

func TestStartQueryFailureStaysLoading(t *testing.T) {
	c := New(&fakeBackend{statusErr: errors.New("network down")})

	if err := c.Start(context.Background(), "u"); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != StateLoading {
		t.Errorf("expected loading, got %s", c.State())
	}

	// Fallback entry still available.
	if err := c.Begin("u", nil); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateComplete {
		t.Errorf("expected complete, got %s", c.State())
	}
}

func TestNoReentryAfterComplete(t *testing.T) {
	c := New(&fakeBackend{})
	c.Begin("u", nil)

	if err := c.Begin("u", twoQuestions()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if err := c.Start(context.Background(), "u"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if c.State() != StateComplete {
		t.Errorf("expected complete, got %s", c.State())
	}
}
