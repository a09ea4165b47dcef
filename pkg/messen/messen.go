// Package messen defines the messaging session a messer session talks to.
//
// A Client authenticates, delivers push events once Listen is called, and
// performs the thread and message operations command handlers need. The
// local mailbox in pkg/store is the default implementation.
package messen

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotLoggedIn is returned by operations that require a session.
	ErrNotLoggedIn = errors.New("messen: not logged in")

	// ErrThreadNotFound is returned when a thread id or name does not match.
	ErrThreadNotFound = errors.New("messen: thread not found")

	// ErrUserNotFound is returned when no user has the given name.
	ErrUserNotFound = errors.New("messen: user not found")

	// ErrBadCredentials is returned by Login when authentication is rejected.
	ErrBadCredentials = errors.New("messen: bad credentials")
)

// User is an account known to the backend.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Thread is a conversation between two or more users.
type Thread struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	Updated      time.Time `json:"updated"`
}

// Message is a single message in a thread.
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread"`
	AuthorID   string    `json:"author"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	Sent       time.Time `json:"sent"`
}

// Credentials are supplied by a Prompter during Login.
type Credentials struct {
	Name     string
	Password string
}

// Prompter supplies secrets on demand while logging in.
type Prompter interface {
	Credentials() (Credentials, error)
}

// Client is the messaging session capability.
type Client interface {
	Login(ctx context.Context) error
	// Listen starts event delivery. The channel is closed when ctx is done or
	// the session ends.
	Listen(ctx context.Context) (<-chan Event, error)
	Logout(ctx context.Context) error
	Me() User

	Send(ctx context.Context, threadID, body string) (Message, error)
	// DeleteLast removes up to n of the caller's most recent messages in the
	// thread and returns how many were removed.
	DeleteLast(ctx context.Context, threadID string, n int) (int, error)
	// Thread resolves a thread by id, or by case-insensitive name.
	Thread(ctx context.Context, idOrName string) (Thread, error)
	// Threads returns up to limit threads, most recently updated first.
	Threads(ctx context.Context, limit int) ([]Thread, error)
	// History returns up to limit of the newest messages, oldest first.
	History(ctx context.Context, threadID string, limit int) ([]Message, error)
	Users(ctx context.Context) ([]User, error)
	// DirectThread returns the two-person thread with the named user,
	// creating it when needed.
	DirectThread(ctx context.Context, userName string) (Thread, error)
}
