// Package session holds the state shared by the command router and the event
// dispatcher for one logged in messer session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tableflip.dev/messer/pkg/console"
	"tableflip.dev/messer/pkg/lock"
	"tableflip.dev/messer/pkg/messen"
)

// Title is the terminal title shown when there is nothing unread.
const Title = "messer"

// ErrNoTerminator is returned by Terminate when nothing owns the session end.
var ErrNoTerminator = errors.New("session: no terminator")

// LoginError wraps a failed login. It ends the session attempt.
type LoginError struct {
	Err error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed: %v", e.Err)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Terminator ends a session. The lifecycle runner implements it so the
// logout command can request an orderly teardown.
type Terminator interface {
	Logout(ctx context.Context) error
}

// Session is created once per process by the lifecycle runner. The unread
// counter and last thread are mutated from both the command goroutine and the
// event goroutine and are guarded by mu. mu is never held while calling into
// the surface or the client.
type Session struct {
	client messen.Client
	lock   *lock.Store
	log    *zap.Logger
	debug  bool

	mu         sync.Mutex
	lastThread *messen.Thread
	unread     int
	surface    console.Surface
	terminator Terminator
}

// Option configures a Session.
type Option func(*Session)

// WithDebug marks the session as running in debug mode.
func WithDebug(debug bool) Option {
	return func(s *Session) {
		s.debug = debug
	}
}

// WithLogger sets the session logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Session bound to client.
func New(client messen.Client, opts ...Option) *Session {
	s := &Session{
		client: client,
		lock:   &lock.Store{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Client() messen.Client { return s.client }
func (s *Session) Lock() *lock.Store      { return s.lock }
func (s *Session) Logger() *zap.Logger    { return s.log }
func (s *Session) Debug() bool            { return s.debug }

// Surface returns the attached line surface, or nil before the interactive
// loop starts.
func (s *Session) Surface() console.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

func (s *Session) SetSurface(surface console.Surface) {
	s.mu.Lock()
	s.surface = surface
	s.mu.Unlock()
}

func (s *Session) SetTerminator(t Terminator) {
	s.mu.Lock()
	s.terminator = t
	s.mu.Unlock()
}

// Terminate asks the owner of the session to log out.
func (s *Session) Terminate(ctx context.Context) error {
	s.mu.Lock()
	t := s.terminator
	s.mu.Unlock()
	if t == nil {
		return ErrNoTerminator
	}
	return t.Logout(ctx)
}

// LastThread returns the most recently active thread, if any.
func (s *Session) LastThread() (messen.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastThread == nil {
		return messen.Thread{}, false
	}
	return *s.lastThread, true
}

func (s *Session) SetLastThread(t messen.Thread) {
	s.mu.Lock()
	s.lastThread = &t
	s.mu.Unlock()
}

// Unread returns the number of messages received since the last clear.
func (s *Session) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// IncrementUnread bumps the unread counter and updates the surface title.
func (s *Session) IncrementUnread() int {
	s.mu.Lock()
	s.unread++
	n := s.unread
	surface := s.surface
	s.mu.Unlock()

	if surface != nil {
		surface.SetTitle(titleFor(n))
	}
	return n
}

// ClearUnread resets the unread counter. It does nothing when no messages are
// pending.
func (s *Session) ClearUnread() {
	s.mu.Lock()
	if s.unread == 0 {
		s.mu.Unlock()
		return
	}
	s.unread = 0
	surface := s.surface
	s.mu.Unlock()

	if surface != nil {
		surface.SetTitle(Title)
	}
}

// Display writes text to the surface. Without a surface the text is dropped.
func (s *Session) Display(text string) {
	if surface := s.Surface(); surface != nil {
		surface.Display(text)
	}
}

func titleFor(unread int) string {
	if unread == 0 {
		return Title
	}
	return fmt.Sprintf("%s (%d)", Title, unread)
}
