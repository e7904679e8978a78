package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/connector/internal/api"
	"github.com/user/connector/internal/app"
	"github.com/user/connector/internal/chat"
	"github.com/user/connector/internal/details"
	"github.com/user/connector/internal/identity"
	"github.com/user/connector/internal/onboarding"
	"github.com/user/connector/internal/scheduler"
	"github.com/user/connector/internal/types"
	"github.com/user/connector/internal/view"
)

const helpText = `Commands:
  /details <n>  show the page for event n on the board
  /board        show the event board again
  /retry        resubmit your profile after a failed attempt
  /quit         exit`

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	kv := openStore(cfg)
	if kv != nil {
		defer kv.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newREPL(api.New(cfg.APIBaseURL, nil), identity.New(kv), cmd.InOrStdin(), cmd.OutOrStdout(), !plain)

	sched, err := scheduler.New(scheduler.Midnight, nil, r.refreshBoard)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	slog.Debug("connector started", "api_base_url", cfg.APIBaseURL, "storage", cfg.Storage.Backend)
	return r.run(ctx)
}

// repl drives an app.Controller from line-oriented input.
type repl struct {
	ctrl    *app.Controller
	view    *view.Renderer
	fetcher *details.Fetcher
	in      io.Reader
	out     io.Writer
	now     func() time.Time

	mu    sync.Mutex
	shown []types.Event
	mode  app.Mode
}

func newREPL(backend types.Backend, ids *identity.Store, in io.Reader, out io.Writer, styled bool) *repl {
	r := &repl{
		view:    view.New(out, styled),
		fetcher: details.NewFetcher(nil),
		in:      in,
		out:     out,
		now:     time.Now,
	}
	r.ctrl = app.New(backend, ids, chat.WithObserver(r.onChat))
	return r
}

func (r *repl) run(ctx context.Context) error {
	if err := r.ctrl.Init(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer r.ctrl.Close()
	r.sync()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		fmt.Fprint(r.out, "> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-errc:
				return err
			default:
				return nil
			}
		}

		command, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch command {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(r.out, helpText)
		case "/retry":
			r.retry(ctx)
		case "/details":
			r.details(ctx, strings.TrimSpace(arg))
		case "/board":
			r.refreshBoard()
		default:
			if r.ctrl.Mode() == app.ModeOnboarding {
				r.answer(ctx, line)
			} else {
				r.send(ctx, line)
			}
		}
	}
}

// sync renders whatever the controller's mode calls for: the current
// question while onboarding, or the full log and board on entering chat.
func (r *repl) sync() {
	mode := r.ctrl.Mode()
	switch mode {
	case app.ModeOnboarding:
		ob := r.ctrl.Onboarding()
		if q, ok := ob.Current(); ok {
			index, total := ob.Progress()
			r.view.Question(q, index, total, ob.IsLast())
		}
	case app.ModeChat:
		r.mu.Lock()
		entering := r.mode != app.ModeChat
		r.mu.Unlock()
		if entering {
			st := r.ctrl.Session().Snapshot()
			r.view.Messages(st.Messages)
			r.showBoard(st.Events)
		}
	}
	r.mu.Lock()
	r.mode = mode
	r.mu.Unlock()
}

func (r *repl) answer(ctx context.Context, text string) {
	err := r.ctrl.Answer(ctx, text)
	switch {
	case errors.Is(err, onboarding.ErrAnswerTooShort):
		r.view.Validation()
		return
	case errors.Is(err, onboarding.ErrNotPending):
		// A submission already failed; only /retry moves on from here.
		r.view.SubmitFailed()
		return
	case err != nil:
		r.view.SubmitFailed()
		return
	}
	r.sync()
}

func (r *repl) retry(ctx context.Context) {
	if err := r.ctrl.RetrySubmit(ctx); err != nil {
		if errors.Is(err, app.ErrNotOnboarding) || errors.Is(err, onboarding.ErrNotFailed) {
			r.view.Error(errors.New("nothing to retry"))
			return
		}
		r.view.SubmitFailed()
		return
	}
	r.sync()
}

func (r *repl) send(ctx context.Context, text string) {
	err := r.ctrl.Send(ctx, text)
	switch {
	case err == nil, errors.Is(err, chat.ErrEmptyMessage):
	default:
		r.view.Error(err)
	}
}

// onChat renders session changes. The user's own line is already on screen.
func (r *repl) onChat(st chat.State) {
	if st.Pending {
		r.view.Thinking()
		return
	}
	if n := len(st.Messages); n > 0 {
		r.view.Message(st.Messages[n-1])
	}
	r.showBoard(st.Events)
}

func (r *repl) showBoard(events []types.Event) {
	shown := r.view.Board(events, r.now())
	r.mu.Lock()
	r.shown = shown
	r.mu.Unlock()
}

// refreshBoard re-renders the board so relative date labels stay current.
func (r *repl) refreshBoard() {
	s := r.ctrl.Session()
	if s == nil {
		return
	}
	st := s.Snapshot()
	if st.Pending {
		return
	}
	r.showBoard(st.Events)
}

func (r *repl) details(ctx context.Context, arg string) {
	n, err := strconv.Atoi(arg)
	r.mu.Lock()
	shown := r.shown
	r.mu.Unlock()
	if err != nil || n < 1 || n > len(shown) {
		r.view.Error(fmt.Errorf("no event numbered %q on the board", arg))
		return
	}

	md, err := r.fetcher.Fetch(ctx, shown[n-1].URL)
	if err != nil {
		slog.Warn("fetch event details failed", "url", shown[n-1].URL, "error", err)
		r.view.Error(err)
		return
	}
	r.view.Markdown(md)
}
