// Package printers renders sessions, threads and messages as terminal text.
package printers

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/muesli/reflow/wordwrap"

	"tableflip.dev/messer/pkg/messen"
	"tableflip.dev/messer/pkg/timeutil"
)

const (
	defaultWidth = 80
	layoutTime   = "Jan 2 15:04"
)

// PrettyPrint returns colored text. Me is the session user id, used to mark
// outgoing messages.
type PrettyPrint struct {
	Me    string
	Width int
}

func (pp *PrettyPrint) width() int {
	if pp.Width <= 0 {
		return defaultWidth
	}
	return pp.Width
}

// Message renders an incoming message notification.
func (pp *PrettyPrint) Message(m messen.Message, thread messen.Thread) string {
	title := color.New(color.Bold)
	who := color.New(color.FgCyan)

	header := who.Sprint(m.AuthorName)
	if thread.Name != "" && !strings.EqualFold(thread.Name, m.AuthorName) {
		header = fmt.Sprintf("%s %s", header, title.Sprintf("in %s", thread.Name))
	}
	return fmt.Sprintf("%s: %s", header, wordwrap.String(m.Body, pp.width()))
}

// History renders messages oldest first.
func (pp *PrettyPrint) History(thread messen.Thread, msgs []messen.Message) string {
	b := strings.Builder{}
	b.WriteString(color.New(color.Bold, color.Underline).Sprint(thread.Name))
	b.WriteString("\n")

	if len(msgs) == 0 {
		b.WriteString(color.New(color.Faint, color.Italic).Sprint(" none"))
		return b.String()
	}

	faint := color.New(color.Faint)
	mine := color.New(color.FgGreen)
	theirs := color.New(color.FgCyan)
	for i, m := range msgs {
		who := theirs.Sprint(m.AuthorName)
		if m.AuthorID == pp.Me {
			who = mine.Sprint("you")
		}
		b.WriteString(fmt.Sprintf("%s %s: %s", faint.Sprint(m.Sent.Format(layoutTime)), who, wordwrap.String(m.Body, pp.width())))
		if i < len(msgs)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Threads renders a table of threads.
func (pp *PrettyPrint) Threads(threads []messen.Thread) string {
	if len(threads) == 0 {
		return color.New(color.Faint, color.Italic).Sprint("no threads")
	}
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = uint(pp.width())
	tbl.AddRow(bold.Sprint("Thread"), bold.Sprint("Last active"), bold.Sprint("ID"))
	for _, t := range threads {
		tbl.AddRow(t.Name, since(t.Updated), faint.Sprint(t.ID))
	}
	return tbl.String()
}

// Users renders a table of contacts.
func (pp *PrettyPrint) Users(users []messen.User) string {
	if len(users) == 0 {
		return color.New(color.Faint, color.Italic).Sprint("no contacts")
	}
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Name"), bold.Sprint("ID"))
	for _, u := range users {
		name := u.Name
		if u.ID == pp.Me {
			name += " (you)"
		}
		tbl.AddRow(name, faint.Sprint(u.ID))
	}
	return tbl.String()
}

// ThreadEvent renders a thread change notice, naming who made the change when
// it is someone other than the session user.
func (pp *PrettyPrint) ThreadEvent(ev messen.ThreadEvent) string {
	var text string
	switch ev.Kind {
	case messen.ThreadCreated:
		text = fmt.Sprintf("new thread %q", ev.Thread.Name)
	case messen.ThreadRenamed:
		text = fmt.Sprintf("thread renamed to %q", ev.Thread.Name)
	default:
		text = fmt.Sprintf("thread %q updated", ev.Thread.Name)
	}
	if ev.Actor.Name != "" && ev.Actor.ID != pp.Me {
		text = fmt.Sprintf("%s by %s", text, ev.Actor.Name)
	}
	return pp.Notice(text)
}

func (pp *PrettyPrint) Notice(text string) string {
	return color.New(color.Faint).Sprint(text)
}

func (pp *PrettyPrint) Warning(text string) string {
	return color.New(color.FgYellow).Sprint(text)
}

func (pp *PrettyPrint) Error(err error) string {
	return color.New(color.FgRed).Sprint(err.Error())
}

func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	now := time.Now()
	if now.Sub(t) < 7*24*time.Hour {
		return timeutil.Ago(now, t)
	}
	return t.Local().Format(layoutTime)
}
