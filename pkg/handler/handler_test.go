package handler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"tableflip.dev/messer/pkg/messen"
	"tableflip.dev/messer/pkg/messen/messentest"
	"tableflip.dev/messer/pkg/session"
)

func init() {
	color.NoColor = true
}

func newTestSession() (*session.Session, *messentest.Client) {
	c := messentest.New(messen.User{ID: "me", Name: "alice"})
	c.AddUser(messen.User{ID: "bob", Name: "bob"})
	c.AddThread(messen.Thread{ID: "42", Name: "book club", Participants: []string{"me", "bob"}})
	return session.New(c), c
}

func run(t *testing.T, s *session.Session, line string) (string, error) {
	t.Helper()
	keyword := strings.Fields(line)[0]
	h, ok := Default(Options{}).Resolve(keyword)
	if !ok {
		t.Fatalf("no handler for %q", keyword)
	}
	return h.Handle(context.Background(), line, s)
}

func TestRegistryResolvesNamesAndAliases(t *testing.T) {
	r := Default(Options{})
	for _, k := range []string{"message", "m", "reply", "r", "delete", "d", "lock", "l", "unlock", "u", "history", "h", "recent", "contacts", "clear", "help", "logout"} {
		if _, ok := r.Resolve(k); !ok {
			t.Errorf("expected %q to resolve", k)
		}
	}
	for _, k := range []string{"frobnicate", "", "Message", "mess"} {
		if _, ok := r.Resolve(k); ok {
			t.Errorf("expected %q to be unknown", k)
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	noop := HandlerFunc(func(context.Context, string, *session.Session) (string, error) { return "", nil })
	_, err := NewRegistry(
		Command{Name: "one", Aliases: []string{"o"}, Handler: noop},
		Command{Name: "other", Aliases: []string{"o"}, Handler: noop},
	)
	if err == nil {
		t.Fatalf("expected duplicate alias to be rejected")
	}
}

func TestMessageQuotedTarget(t *testing.T) {
	s, c := newTestSession()
	if _, err := run(t, s, `message "book club" hello   there`); err != nil {
		t.Fatalf("message: %v", err)
	}
	calls := c.Calls()
	if len(calls) != 1 || calls[0].Thread != "42" || calls[0].Body != "hello   there" {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestMessageOpensDirectThread(t *testing.T) {
	s, c := newTestSession()
	if _, err := run(t, s, `m bob hi`); err != nil {
		t.Fatalf("message: %v", err)
	}
	calls := c.Calls()
	if len(calls) != 1 || calls[0].Thread != "dm-bob" {
		t.Fatalf("expected direct thread send, got %+v", calls)
	}
}

func TestMessageUnknownTarget(t *testing.T) {
	s, _ := newTestSession()
	_, err := run(t, s, `m "nobody" hi`)
	if !errors.Is(err, messen.ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestMessageUsage(t *testing.T) {
	s, _ := newTestSession()
	for _, line := range []string{`message`, `message "book club"`, `message "unterminated hi`} {
		_, err := run(t, s, line)
		var usage *UsageError
		if !errors.As(err, &usage) {
			t.Errorf("%q: expected UsageError, got %v", line, err)
		}
	}
}

func TestReplyNeedsLastThread(t *testing.T) {
	s, c := newTestSession()
	if _, err := run(t, s, "reply hi"); !errors.Is(err, ErrNoLastThread) {
		t.Fatalf("expected ErrNoLastThread, got %v", err)
	}

	s.SetLastThread(messen.Thread{ID: "42", Name: "book club"})
	if _, err := run(t, s, "r hi again"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	calls := c.Calls()
	if len(calls) != 1 || calls[0].Thread != "42" || calls[0].Body != "hi again" {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestDeleteCounts(t *testing.T) {
	s, c := newTestSession()
	for _, body := range []string{"one", "two", "three"} {
		if _, err := c.Send(context.Background(), "42", body); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	out, err := run(t, s, `delete "book club" 2`)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if out != "Deleted 2 messages from book club" {
		t.Fatalf("unexpected output %q", out)
	}
	if left := c.Messages("42"); len(left) != 1 || left[0].Body != "one" {
		t.Fatalf("unexpected remaining messages %+v", left)
	}

	if _, err := run(t, s, `delete "book club" zero`); err == nil {
		t.Fatalf("expected invalid count to fail")
	}
}

func TestLockAndUnlock(t *testing.T) {
	s, _ := newTestSession()

	if _, err := run(t, s, `lock "book club" --secret`); err != nil {
		t.Fatalf("lock: %v", err)
	}
	target, err := s.Lock().LockedTarget()
	if err != nil || target != "42" {
		t.Fatalf("expected lock on 42, got %q (%v)", target, err)
	}
	if !s.Lock().IsAnonymous() {
		t.Fatalf("expected secret lock to be anonymous")
	}

	out, err := run(t, s, "unlock")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !strings.Contains(out, "Unlocked from 42") {
		t.Fatalf("unexpected unlock output %q", out)
	}
	if s.Lock().IsLocked() {
		t.Fatalf("expected lock cleared")
	}

	if _, err := run(t, s, `lock "book club" --loud`); err == nil {
		t.Fatalf("expected unknown lock flag to fail")
	}
}

func TestHistoryAndRecent(t *testing.T) {
	s, c := newTestSession()
	if _, err := c.Send(context.Background(), "42", "hello"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := run(t, s, `history "book club"`)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "you: hello") {
		t.Fatalf("expected history to contain message, got %q", out)
	}

	out, err = run(t, s, "recent 1")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if !strings.Contains(out, "book club") {
		t.Fatalf("expected recent to list thread, got %q", out)
	}
}

func TestHelpListsCommands(t *testing.T) {
	s, _ := newTestSession()
	out, err := run(t, s, "help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"message", "lock", "unlock", "logout"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to mention %q", want)
		}
	}
}

func TestLogoutWithoutTerminatorFails(t *testing.T) {
	s, _ := newTestSession()
	if _, err := run(t, s, "logout"); !errors.Is(err, session.ErrNoTerminator) {
		t.Fatalf("expected ErrNoTerminator, got %v", err)
	}
}
