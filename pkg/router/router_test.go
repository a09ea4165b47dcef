package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/messer/pkg/events"
	"tableflip.dev/messer/pkg/handler"
	"tableflip.dev/messer/pkg/messen"
	"tableflip.dev/messer/pkg/messen/messentest"
	"tableflip.dev/messer/pkg/session"
)

func init() {
	color.NoColor = true
}

type invocation struct {
	verb string
	cmd  string
}

// recorder is a resolver whose handlers record what they were called with.
type recorder struct {
	mu      sync.Mutex
	calls   []invocation
	results map[string]string
	errs    map[string]error
}

func newRecorder() *recorder {
	return &recorder{results: map[string]string{}, errs: map[string]error{}}
}

func (r *recorder) Resolve(keyword string) (handler.Handler, bool) {
	switch keyword {
	case "message", "delete", "unlock", "help":
	default:
		return nil, false
	}
	return handler.HandlerFunc(func(_ context.Context, cmd string, s *session.Session) (string, error) {
		r.mu.Lock()
		r.calls = append(r.calls, invocation{verb: keyword, cmd: cmd})
		r.mu.Unlock()
		if keyword == "unlock" {
			s.Lock().Clear()
		}
		return r.results[keyword], r.errs[keyword]
	}), true
}

func (r *recorder) invocations() []invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]invocation, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestWhitespaceIsNoop(t *testing.T) {
	for _, locked := range []bool{false, true} {
		rec := newRecorder()
		s := session.New(nil)
		if locked {
			s.Lock().Set("42", true)
		}
		r := New(rec, s)

		for _, line := range []string{"", "  ", "\t \n"} {
			out, err := r.Process(context.Background(), line)
			if err != nil || out != "" {
				t.Fatalf("locked=%t %q: expected empty success, got %q, %v", locked, line, out, err)
			}
		}
		if calls := rec.invocations(); len(calls) != 0 {
			t.Fatalf("locked=%t: expected no handler calls, got %+v", locked, calls)
		}
	}
}

func TestUnknownVerbIsInvalidCommand(t *testing.T) {
	r := New(newRecorder(), session.New(nil))
	_, err := r.Process(context.Background(), "frobnicate x")
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand, got %v", err)
	}
	if err.Error() != "Invalid command - check your syntax" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestUnlockedRoutesByVerb(t *testing.T) {
	rec := newRecorder()
	rec.results["help"] = "usage"
	r := New(rec, session.New(nil))

	out, err := r.Process(context.Background(), "  help me  ")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out != "usage" {
		t.Fatalf("expected handler result, got %q", out)
	}
	calls := rec.invocations()
	if len(calls) != 1 || calls[0].verb != "help" || calls[0].cmd != "help me" {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestLockedRewritesToMessage(t *testing.T) {
	rec := newRecorder()
	s := session.New(nil)
	s.Lock().Set("42", false)
	r := New(rec, s)

	if _, err := r.Process(context.Background(), "hello   there"); err != nil {
		t.Fatalf("process: %v", err)
	}
	// Unknown verbs and known ones alike become message content.
	if _, err := r.Process(context.Background(), "help me"); err != nil {
		t.Fatalf("process: %v", err)
	}

	calls := rec.invocations()
	want := []invocation{
		{verb: "message", cmd: `message "42" hello there`},
		{verb: "message", cmd: `message "42" help me`},
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected %+v, got %+v", want, calls)
		}
	}
}

func TestLockedUnlock(t *testing.T) {
	rec := newRecorder()
	s := session.New(nil)
	s.Lock().Set("42", true)
	r := New(rec, s)

	if _, err := r.Process(context.Background(), "  unlock "); err != nil {
		t.Fatalf("process: %v", err)
	}
	calls := rec.invocations()
	if len(calls) != 1 || calls[0].verb != "unlock" {
		t.Fatalf("expected only unlock, got %+v", calls)
	}
	if s.Lock().IsLocked() {
		t.Fatalf("expected lock to be cleared")
	}

	// "unlock" with trailing words is a message while locked.
	s.Lock().Set("42", false)
	if _, err := r.Process(context.Background(), "unlock please"); err != nil {
		t.Fatalf("process: %v", err)
	}
	calls = rec.invocations()
	if last := calls[len(calls)-1]; last.verb != "message" || last.cmd != `message "42" unlock please` {
		t.Fatalf("expected message, got %+v", last)
	}
}

func TestAnonymousLockRetractsAfterSend(t *testing.T) {
	rec := newRecorder()
	rec.results["message"] = "sent"
	rec.errs["delete"] = errors.New("backend said no")
	s := session.New(nil)
	s.Lock().Set("42", true)
	r := New(rec, s)

	out, err := r.Process(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out != "sent" {
		t.Fatalf("expected send result despite cleanup failure, got %q", out)
	}

	calls := rec.invocations()
	want := []invocation{
		{verb: "message", cmd: `message "42" hello there`},
		{verb: "delete", cmd: `delete "42" 1`},
	}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, calls)
	}
}

func TestAnonymousLockSkipsRetractWhenSendFails(t *testing.T) {
	rec := newRecorder()
	rec.errs["message"] = errors.New("offline")
	s := session.New(nil)
	s.Lock().Set("42", true)
	r := New(rec, s)

	_, err := r.Process(context.Background(), "hello")
	var herr *HandlerError
	if !errors.As(err, &herr) || herr.Command != "message" {
		t.Fatalf("expected HandlerError for message, got %v", err)
	}
	if calls := rec.invocations(); len(calls) != 1 {
		t.Fatalf("expected no cleanup after a failed send, got %+v", calls)
	}
}

func TestNonAnonymousLockDoesNotRetract(t *testing.T) {
	rec := newRecorder()
	s := session.New(nil)
	s.Lock().Set("42", false)
	r := New(rec, s)

	if _, err := r.Process(context.Background(), "hello"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if calls := rec.invocations(); len(calls) != 1 || calls[0].verb != "message" {
		t.Fatalf("expected a single send, got %+v", calls)
	}
}

func TestProcessClearsUnread(t *testing.T) {
	s := session.New(nil)
	s.IncrementUnread()
	r := New(newRecorder(), s)

	if _, err := r.Process(context.Background(), " "); err != nil {
		t.Fatalf("process: %v", err)
	}
	if s.Unread() != 0 {
		t.Fatalf("expected unread cleared, got %d", s.Unread())
	}
}

// Entering secret mode does not retract anything: the message before the
// lock was sent in the open and stays.
func TestSecretLockCommandDoesNotRetract(t *testing.T) {
	c := messentest.New(messen.User{ID: "me", Name: "alice"})
	c.AddThread(messen.Thread{ID: "42", Name: "bob"})
	s := session.New(c)
	r := New(handler.Default(handler.Options{}), s)

	if _, err := r.Process(context.Background(), `message "bob" before`); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := r.Process(context.Background(), `lock "bob" --secret`); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if !s.Lock().IsAnonymous() {
		t.Fatal("expected anonymous lock")
	}
	if ops := strings.Join(c.Ops(), ","); ops != "send" {
		t.Fatalf("expected only the earlier send, got %s", ops)
	}
	if left := c.Messages("42"); len(left) != 1 || left[0].Body != "before" {
		t.Fatalf("expected the earlier message untouched, got %+v", left)
	}
}

func TestLockedAnonymousWithDefaultHandlers(t *testing.T) {
	c := messentest.New(messen.User{ID: "me", Name: "alice"})
	c.AddThread(messen.Thread{ID: "42", Name: "bob"})
	s := session.New(c)
	r := New(handler.Default(handler.Options{}), s)

	if _, err := r.Process(context.Background(), `lock "bob" --secret`); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := r.Process(context.Background(), "hello there"); err != nil {
		t.Fatalf("send: %v", err)
	}

	calls := c.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected send and delete, got %+v", calls)
	}
	if calls[0].Op != "send" || calls[0].Thread != "42" || calls[0].Body != "hello there" {
		t.Fatalf("unexpected send %+v", calls[0])
	}
	if calls[1].Op != "delete" || calls[1].Thread != "42" || calls[1].N != 1 {
		t.Fatalf("unexpected delete %+v", calls[1])
	}
	if left := c.Messages("42"); len(left) != 0 {
		t.Fatalf("expected the message to be retracted, got %+v", left)
	}

	out, err := r.Process(context.Background(), "unlock")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !strings.Contains(out, "Unlocked") {
		t.Fatalf("unexpected unlock output %q", out)
	}
	if len(c.Calls()) != 2 {
		t.Fatalf("unlock must not send or delete, got %+v", c.Calls())
	}
}

func TestEventsDuringSuspendedSend(t *testing.T) {
	c := messentest.New(messen.User{ID: "me", Name: "alice"})
	c.AddThread(messen.Thread{ID: "42", Name: "bob"})
	entered := make(chan struct{})
	release := make(chan struct{})
	c.SendFunc = func(ctx context.Context, _, _ string) error {
		close(entered)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s := session.New(c)
	s.Lock().Set("42", true)
	r := New(handler.Default(handler.Options{}), s)
	d := events.New(s)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := r.Process(context.Background(), "hello")
		done <- result{out, err}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("send handler never started")
	}

	d.Dispatch(messen.MessageEvent{
		Message: messen.Message{ID: "x", ThreadID: "7", AuthorID: "carol", AuthorName: "carol", Body: "hey"},
		Thread:  messen.Thread{ID: "7", Name: "carol"},
	})
	if got := s.Unread(); got != 1 {
		t.Fatalf("expected event to be counted while send is suspended, got %d", got)
	}

	close(release)
	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process never returned")
	}
	if res.err != nil || res.out != "" {
		t.Fatalf("unexpected result %q, %v", res.out, res.err)
	}

	target, err := s.Lock().LockedTarget()
	if err != nil || target != "42" || !s.Lock().IsAnonymous() {
		t.Fatalf("lock state changed: target=%q anonymous=%t err=%v", target, s.Lock().IsAnonymous(), err)
	}
	if last, _ := s.LastThread(); last.ID != "7" {
		t.Fatalf("expected last thread 7 from the event, got %q", last.ID)
	}
}
