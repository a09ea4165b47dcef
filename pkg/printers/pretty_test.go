package printers

import (
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/messer/pkg/messen"
)

func init() {
	color.NoColor = true
}

func TestMessageIncludesThreadForGroups(t *testing.T) {
	pp := PrettyPrint{}
	got := pp.Message(
		messen.Message{AuthorName: "bob", Body: "hello"},
		messen.Thread{Name: "book club"},
	)
	if got != "bob in book club: hello" {
		t.Fatalf("unexpected message rendering %q", got)
	}

	got = pp.Message(
		messen.Message{AuthorName: "bob", Body: "hello"},
		messen.Thread{Name: "Bob"},
	)
	if got != "bob: hello" {
		t.Fatalf("unexpected direct message rendering %q", got)
	}
}

func TestHistoryMarksOwnMessages(t *testing.T) {
	pp := PrettyPrint{Me: "me"}
	sent := time.Date(2020, 3, 1, 10, 30, 0, 0, time.UTC)
	got := pp.History(messen.Thread{Name: "bob"}, []messen.Message{
		{AuthorID: "me", AuthorName: "alice", Body: "ping", Sent: sent},
		{AuthorID: "bob", AuthorName: "bob", Body: "pong", Sent: sent},
	})

	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected title and two messages, got %q", got)
	}
	if !strings.HasSuffix(lines[1], "you: ping") {
		t.Fatalf("expected own message to be marked, got %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "bob: pong") {
		t.Fatalf("expected bob's message, got %q", lines[2])
	}
}

func TestThreadsTable(t *testing.T) {
	pp := PrettyPrint{}
	if got := pp.Threads(nil); got != "no threads" {
		t.Fatalf("unexpected empty rendering %q", got)
	}
	got := pp.Threads([]messen.Thread{{ID: "abc", Name: "bob"}})
	if !strings.Contains(got, "bob") || !strings.Contains(got, "abc") || !strings.Contains(got, "never") {
		t.Fatalf("expected thread row, got %q", got)
	}
	got = pp.Threads([]messen.Thread{{ID: "abc", Name: "bob", Updated: time.Now().Add(-3 * time.Hour)}})
	if !strings.Contains(got, "3h ago") {
		t.Fatalf("expected relative time, got %q", got)
	}
}

func TestUsersMarksSelf(t *testing.T) {
	pp := PrettyPrint{Me: "1"}
	got := pp.Users([]messen.User{{ID: "1", Name: "alice"}, {ID: "2", Name: "bob"}})
	if !strings.Contains(got, "alice (you)") {
		t.Fatalf("expected self marker, got %q", got)
	}
}

func TestThreadEventNamesActor(t *testing.T) {
	pp := PrettyPrint{Me: "1"}
	thread := messen.Thread{ID: "t", Name: "crew"}

	got := pp.ThreadEvent(messen.ThreadEvent{Kind: messen.ThreadCreated, Thread: thread, Actor: messen.User{ID: "2", Name: "bob"}})
	if got != `new thread "crew" by bob` {
		t.Fatalf("unexpected notice %q", got)
	}
	got = pp.ThreadEvent(messen.ThreadEvent{Kind: messen.ThreadRenamed, Thread: thread, Actor: messen.User{ID: "1", Name: "alice"}})
	if got != `thread renamed to "crew"` {
		t.Fatalf("own changes should not name the actor, got %q", got)
	}
	got = pp.ThreadEvent(messen.ThreadEvent{Kind: messen.ThreadUpdated, Thread: thread})
	if got != `thread "crew" updated` {
		t.Fatalf("unexpected notice %q", got)
	}
}
