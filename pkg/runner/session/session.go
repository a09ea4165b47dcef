// Package session runs a messer session from login to logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/messer/pkg/console"
	"tableflip.dev/messer/pkg/events"
	"tableflip.dev/messer/pkg/handler"
	"tableflip.dev/messer/pkg/messen"
	"tableflip.dev/messer/pkg/printers"
	"tableflip.dev/messer/pkg/router"
	sess "tableflip.dev/messer/pkg/session"
)

// State is a position in the session lifecycle.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Listening
	Interactive
	Terminating
	Terminated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "Unauthenticated"
	case Authenticating:
		return "Authenticating"
	case Listening:
		return "Listening"
	case Interactive:
		return "Interactive"
	case Terminating:
		return "Terminating"
	case Terminated:
		return "Terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrInvalidTransition is returned when an operation is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("session: invalid state transition")

// Lifecycle owns one session. A Lifecycle is used once.
type Lifecycle struct {
	Client messen.Client
	// Commands resolves command keywords. Defaults to handler.Default.
	Commands router.Resolver
	// History is the default count for history and recent.
	History int
	// OpenSurface creates the line surface for Start.
	OpenSurface func() (console.Surface, error)
	Logger      *zap.Logger
	Debug       bool

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

var _ sess.Terminator = (*Lifecycle)(nil)

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Lifecycle) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// transition moves from one of from to to. It fails if the session has moved
// on, e.g. a logout happened in between.
func (l *Lifecycle) transition(to State, from ...State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range from {
		if l.state == f {
			l.logger().Debug("state", zap.Stringer("from", f), zap.Stringer("to", to))
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, l.state, to)
}

// login authenticates and builds the shared session state. A failed login is
// final.
func (l *Lifecycle) login(ctx context.Context) (*sess.Session, error) {
	if l.Client == nil {
		return nil, errors.New("session: client required")
	}
	if err := l.transition(Authenticating, Unauthenticated); err != nil {
		return nil, err
	}
	if err := l.Client.Login(ctx); err != nil {
		l.setState(Terminated)
		l.logger().Info("login failed", zap.Error(err))
		return nil, &sess.LoginError{Err: err}
	}
	l.logger().Info("logged in", zap.String("user", l.Client.Me().ID))

	s := sess.New(l.Client, sess.WithLogger(l.logger()), sess.WithDebug(l.Debug))
	s.SetTerminator(l)
	return s, nil
}

func (l *Lifecycle) commands() router.Resolver {
	if l.Commands != nil {
		return l.Commands
	}
	return handler.Default(handler.Options{History: l.History})
}

// Start logs in, subscribes to events and runs the interactive loop until
// input ends or the session logs out. Ending input leaves the saved login in
// place; only Logout removes it.
func (l *Lifecycle) Start(ctx context.Context) error {
	s, err := l.login(ctx)
	if err != nil {
		return err
	}
	defer l.setState(Terminated)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	evs, err := l.Client.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := l.transition(Listening, Authenticating); err != nil {
		return err
	}

	if l.OpenSurface == nil {
		return errors.New("session: no surface")
	}
	surface, err := l.OpenSurface()
	if err != nil {
		return fmt.Errorf("open surface: %w", err)
	}
	defer func() {
		if err := surface.Close(); err != nil {
			l.logger().Warn("close surface", zap.Error(err))
		}
	}()
	s.SetSurface(surface)
	surface.SetTitle(sess.Title)

	if err := l.transition(Interactive, Listening); err != nil {
		return err
	}

	pp := printers.PrettyPrint{Me: l.Client.Me().ID}
	s.Display(pp.Notice(fmt.Sprintf("Logged in as %s. Type help for commands.", l.Client.Me().Name)))

	r := router.New(l.commands(), s)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return events.New(s).Run(gctx, evs)
	})
	g.Go(func() error {
		defer cancel()
		return l.loop(gctx, s, surface, r)
	})
	return g.Wait()
}

type readResult struct {
	line string
	err  error
}

// loop feeds lines to the router one at a time. Lines are only read on
// request so nothing is left reading once the loop returns.
func (l *Lifecycle) loop(ctx context.Context, s *sess.Session, surface console.Surface, r *router.Router) error {
	pp := printers.PrettyPrint{Me: l.Client.Me().ID}

	requests := make(chan struct{})
	lines := make(chan readResult, 1)
	defer close(requests)
	go func() {
		for range requests {
			line, err := surface.ReadLine()
			lines <- readResult{line: line, err: err}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case requests <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		var in readResult
		select {
		case in = <-lines:
		case <-ctx.Done():
			return nil
		}
		if errors.Is(in.err, io.EOF) {
			l.logger().Debug("input closed")
			return nil
		}
		if errors.Is(in.err, console.ErrLineTooLong) {
			s.Display(pp.Error(in.err))
			continue
		}
		if in.err != nil {
			return fmt.Errorf("read input: %w", in.err)
		}

		out, err := r.Process(ctx, in.line)
		switch {
		case err != nil:
			l.logger().Debug("command failed", zap.String("line", in.line), zap.Error(err))
			s.Display(pp.Error(err))
		case out != "":
			s.Display(out)
		}
	}
}

// RunSingle logs in, processes raw and writes the result to stdout. Command
// errors go to stderr and do not fail the run; only login failures do.
func (l *Lifecycle) RunSingle(ctx context.Context, raw string, stdout, stderr io.Writer) error {
	s, err := l.login(ctx)
	if err != nil {
		return err
	}
	defer l.setState(Terminated)
	if err := l.transition(Interactive, Authenticating); err != nil {
		return err
	}
	// Warnings from the command land on stderr.
	s.SetSurface(console.NewPipe(strings.NewReader(""), stderr))

	pp := printers.PrettyPrint{Me: l.Client.Me().ID}
	out, err := router.New(l.commands(), s).Process(ctx, raw)
	if err != nil {
		fmt.Fprintln(stderr, pp.Error(err))
		return nil
	}
	if out != "" {
		fmt.Fprintln(stdout, strings.TrimRight(out, "\n"))
	}
	return nil
}

// Logout ends the backend session, removing any saved login, and stops a
// running Start.
func (l *Lifecycle) Logout(ctx context.Context) error {
	if l.Client == nil {
		return errors.New("session: client required")
	}
	if err := l.transition(Terminating, Unauthenticated, Authenticating, Listening, Interactive); err != nil {
		return err
	}
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	err := l.Client.Logout(ctx)
	if cancel != nil {
		cancel()
	}
	l.setState(Terminated)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	l.logger().Info("logged out")
	return nil
}
