// Package router turns raw input lines into handler invocations, applying the
// session lock.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tableflip.dev/messer/pkg/handler"
	"tableflip.dev/messer/pkg/printers"
	"tableflip.dev/messer/pkg/session"
)

// ErrInvalidCommand is returned for an unknown keyword while unlocked.
var ErrInvalidCommand = errors.New("Invalid command - check your syntax")

// HandlerError wraps a failure returned by a resolved handler.
type HandlerError struct {
	Command string
	Err     error
}

func (e *HandlerError) Error() string {
	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Resolver resolves command keywords. *handler.Registry implements it.
type Resolver interface {
	Resolve(keyword string) (handler.Handler, bool)
}

// Router processes one line at a time. Process is not safe for concurrent
// use: lines are handled sequentially by a single goroutine, which is also
// the only goroutine that touches the session lock.
type Router struct {
	resolver Resolver
	session  *session.Session
}

func New(resolver Resolver, s *session.Session) *Router {
	return &Router{resolver: resolver, session: s}
}

// Process routes line and returns the result of the primary handler.
//
// While the session is locked every line other than "unlock" is sent to the
// locked thread. The rewritten message joins the input fields with single
// spaces, so runs of whitespace in the original line are not preserved. In
// anonymous lock mode a successful send is followed by deleting the last
// message in the thread; that cleanup never changes the returned result.
func (r *Router) Process(ctx context.Context, line string) (string, error) {
	r.session.ClearUnread()

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", nil
	}

	fields := strings.Fields(trimmed)
	verb := fields[0]
	cmd := trimmed
	h, ok := r.resolver.Resolve(verb)

	lk := r.session.Lock()
	viaLock := false
	target := ""
	if lk.IsLocked() {
		target, _ = lk.LockedTarget()
		if trimmed == handler.Unlock {
			verb = handler.Unlock
		} else {
			verb = handler.Message
			cmd = fmt.Sprintf("%s %q %s", handler.Message, target, strings.Join(fields, " "))
			viaLock = true
		}
		h, ok = r.resolver.Resolve(verb)
	}

	log := r.session.Logger().With(zap.String("verb", verb), zap.Bool("locked", viaLock))
	if !ok {
		log.Debug("invalid command")
		return "", ErrInvalidCommand
	}

	log.Debug("routing command")
	res, err := h.Handle(ctx, cmd, r.session)
	if err != nil {
		log.Debug("command failed", zap.Error(err))
		return "", &HandlerError{Command: verb, Err: err}
	}

	if viaLock && lk.IsAnonymous() {
		r.retract(ctx, target)
	}
	return res, nil
}

// retract deletes the message just sent to target. Failures are logged and
// shown as a warning because they leave the message visible.
func (r *Router) retract(ctx context.Context, target string) {
	h, ok := r.resolver.Resolve(handler.Delete)
	if !ok {
		return
	}
	cmd := fmt.Sprintf("%s %q 1", handler.Delete, target)
	if _, err := h.Handle(ctx, cmd, r.session); err != nil {
		r.session.Logger().Warn("anonymous cleanup failed", zap.String("thread", target), zap.Error(err))
		pp := printers.PrettyPrint{}
		r.session.Display(pp.Warning(fmt.Sprintf("warning: could not delete the message sent to %s: %v", target, err)))
	}
}
