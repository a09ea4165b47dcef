// Package events applies backend push notifications to a session.
package events

import (
	"context"

	"go.uber.org/zap"

	"tableflip.dev/messer/pkg/messen"
	"tableflip.dev/messer/pkg/printers"
	"tableflip.dev/messer/pkg/session"
)

// Dispatcher updates session state for inbound events. It never touches the
// session lock, so it can run while a command is in flight.
//
// Events may be delivered more than once and in any order relative to each
// other and to user commands; handling only increments the unread counter and
// overwrites the last thread.
type Dispatcher struct {
	session *session.Session
}

func New(s *session.Session) *Dispatcher {
	return &Dispatcher{session: s}
}

// Run dispatches events until the channel is closed or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, events <-chan messen.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				d.session.Logger().Debug("event stream closed")
				return nil
			}
			d.Dispatch(ev)
		}
	}
}

// Dispatch handles a single event.
func (d *Dispatcher) Dispatch(ev messen.Event) {
	switch ev := ev.(type) {
	case messen.MessageEvent:
		d.message(ev)
	case messen.ThreadEvent:
		d.thread(ev)
	default:
		d.session.Logger().Warn("unknown event", zap.Any("event", ev))
	}
}

func (d *Dispatcher) message(ev messen.MessageEvent) {
	s := d.session
	s.SetLastThread(ev.Thread)
	if ev.Self {
		s.Logger().Debug("own message echoed", zap.String("thread", ev.Thread.ID))
		return
	}
	unread := s.IncrementUnread()
	s.Logger().Debug("message received",
		zap.String("thread", ev.Thread.ID),
		zap.String("author", ev.Message.AuthorID),
		zap.Int("unread", unread))

	pp := d.printer()
	s.Display(pp.Message(ev.Message, ev.Thread))
}

func (d *Dispatcher) thread(ev messen.ThreadEvent) {
	s := d.session
	s.SetLastThread(ev.Thread)
	s.Logger().Debug("thread event",
		zap.String("thread", ev.Thread.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("actor", ev.Actor.ID))

	pp := d.printer()
	s.Display(pp.ThreadEvent(ev))
}

func (d *Dispatcher) printer() printers.PrettyPrint {
	if c := d.session.Client(); c != nil {
		return printers.PrettyPrint{Me: c.Me().ID}
	}
	return printers.PrettyPrint{}
}
