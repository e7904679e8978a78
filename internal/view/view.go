// Package view renders controller snapshots to a terminal.
//
// A Renderer is safe for concurrent use; the chat observer may call it from
// the goroutine performing a send while the REPL prints prompts.
package view

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/connector/internal/dategroup"
	"github.com/user/connector/internal/types"
)

const (
	ThinkingText       = "Thinking..."
	EmptyBoardTitle    = "No events found yet."
	EmptyBoardHint     = "Ask the agent to find activities for you!"
	OnboardingHeader   = "Welcome! Let's create your profile."
	ValidationText     = "Please provide a bit more detail."
	NextLabel          = "Next"
	FinishLabel        = "Finish & Find Events"
	SubmitFailedText   = "Something went wrong saving your profile. Type /retry to try again."
	userLabel          = "You"
	agentLabel         = "Agent"
	markdownWrapColumn = 80
)

type styleFunc func(...string) string

func plain(s ...string) string { return strings.Join(s, " ") }

// Renderer writes the message log, event board and onboarding prompts.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
	md  *glamour.TermRenderer

	user    styleFunc
	agent   styleFunc
	heading styleFunc
	muted   styleFunc
	errText styleFunc
}

// New creates a Renderer. When styled is false output is plain text, which
// is what pipes and tests want.
func New(out io.Writer, styled bool) *Renderer {
	r := &Renderer{
		out:     out,
		user:    plain,
		agent:   plain,
		heading: plain,
		muted:   plain,
		errText: plain,
	}
	if !styled {
		return r
	}

	r.user = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Render
	r.agent = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render
	r.heading = lipgloss.NewStyle().Bold(true).Underline(true).Render
	r.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render
	r.errText = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(markdownWrapColumn),
	)
	if err != nil {
		slog.Warn("markdown renderer unavailable, using plain text", "error", err)
	} else {
		r.md = md
	}
	return r
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// markdown renders md through glamour when available.
func (r *Renderer) markdown(md string) string {
	if r.md == nil {
		return md
	}
	out, err := r.md.Render(md)
	if err != nil {
		slog.Debug("markdown render failed", "error", err)
		return md
	}
	return strings.TrimRight(out, "\n")
}

// Message prints one log entry.
func (r *Renderer) Message(m types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Sender == types.SenderUser {
		r.printf("%s: %s\n", r.user(userLabel), m.Text)
		return
	}
	r.printf("%s: %s\n", r.agent(agentLabel), r.markdown(m.Text))
}

// Messages prints a log in order.
func (r *Renderer) Messages(msgs []types.Message) {
	for _, m := range msgs {
		r.Message(m)
	}
}

// Thinking prints the pending indicator. It is never part of the log.
func (r *Renderer) Thinking() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s: %s\n", r.agent(agentLabel), r.muted(ThinkingText))
}

// Board prints events de-duplicated by URL and grouped by date label, and
// returns them in display order so callers can address them by number.
func (r *Renderer) Board(events []types.Event, now time.Time) []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	groups := dategroup.ByDate(dategroup.Unique(events), now)
	if len(groups) == 0 {
		r.printf("%s\n%s\n", r.heading(EmptyBoardTitle), r.muted(EmptyBoardHint))
		return nil
	}

	var shown []types.Event
	for _, g := range groups {
		r.printf("\n%s\n", r.heading(g.Label))
		for _, e := range g.Events {
			shown = append(shown, e)
			r.printf("  [%d] %s\n", len(shown), e.Title)
			if e.Location != "" {
				r.printf("      %s\n", r.muted(e.Location))
			}
			if e.Summary != "" {
				r.printf("      %s\n", e.Summary)
			}
			if e.URL != "" {
				r.printf("      %s\n", r.muted(e.URL))
			}
		}
	}
	return shown
}

// Question prints the onboarding prompt for the question at index of total.
func (r *Renderer) Question(q types.Question, index, total int, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index == 0 {
		r.printf("%s\n", r.heading(OnboardingHeader))
	}
	action := NextLabel
	if last {
		action = FinishLabel
	}
	r.printf("\n(%d/%d) %s\n", index+1, total, q.Text)
	if q.Placeholder != "" {
		r.printf("%s\n", r.muted("e.g. "+q.Placeholder))
	}
	r.printf("%s\n", r.muted("[Enter] "+action))
}

// Validation prints the inline too-short-answer hint.
func (r *Renderer) Validation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s\n", r.errText(ValidationText))
}

// SubmitFailed prints the generic submission failure notice.
func (r *Renderer) SubmitFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s\n", r.errText(SubmitFailedText))
}

// Error prints an inline error that does not affect session state.
func (r *Renderer) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s\n", r.errText("Error: "+err.Error()))
}

// Markdown prints a markdown document, such as an event details page.
func (r *Renderer) Markdown(md string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s\n", r.markdown(md))
}
