// Package messentest provides an in-memory messen.Client for tests.
package messentest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tableflip.dev/messer/pkg/messen"
)

// Call records one operation made against the fake.
type Call struct {
	Op     string
	Thread string
	Body   string
	N      int
}

// Client is an in-memory messen.Client. Hooks may be set before use.
type Client struct {
	// LoginErr is returned by Login.
	LoginErr error
	// SendFunc runs before a message is stored; an error aborts the send.
	SendFunc func(ctx context.Context, threadID, body string) error
	// DeleteErr is returned by DeleteLast.
	DeleteErr error

	mu        sync.Mutex
	me        messen.User
	loggedIn  bool
	loggedOut bool
	users     []messen.User
	threads   []messen.Thread
	messages  map[string][]messen.Message
	calls     []Call
	events    chan messen.Event
	seq       int
}

var _ messen.Client = (*Client)(nil)

// New returns a fake logged in as me once Login is called.
func New(me messen.User) *Client {
	return &Client{
		me:       me,
		users:    []messen.User{me},
		messages: make(map[string][]messen.Message),
	}
}

func (c *Client) AddUser(u messen.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, u)
}

func (c *Client) AddThread(t messen.Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads = append(c.threads, t)
}

// Calls returns a copy of the recorded operations.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Ops returns just the operation names of the recorded calls.
func (c *Client) Ops() []string {
	calls := c.Calls()
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.Op
	}
	return out
}

func (c *Client) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// Emit delivers ev to the channel returned by Listen. Events are dropped when
// nobody is listening.
func (c *Client) Emit(ev messen.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *Client) record(call Call) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *Client) Login(context.Context) error {
	c.record(Call{Op: "login"})
	if c.LoginErr != nil {
		return c.LoginErr
	}
	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Listen(ctx context.Context) (<-chan messen.Event, error) {
	c.record(Call{Op: "listen"})
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn {
		return nil, messen.ErrNotLoggedIn
	}
	ch := make(chan messen.Event, 64)
	c.events = ch
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.events == ch {
			close(ch)
			c.events = nil
		}
	}()
	return ch, nil
}

func (c *Client) Logout(context.Context) error {
	c.record(Call{Op: "logout"})
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = false
	c.loggedOut = true
	if c.events != nil {
		close(c.events)
		c.events = nil
	}
	return nil
}

func (c *Client) Me() messen.User {
	return c.me
}

func (c *Client) Send(ctx context.Context, threadID, body string) (messen.Message, error) {
	c.record(Call{Op: "send", Thread: threadID, Body: body})
	if c.SendFunc != nil {
		if err := c.SendFunc(ctx, threadID, body); err != nil {
			return messen.Message{}, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	m := messen.Message{
		ID:         fmt.Sprintf("m%d", c.seq),
		ThreadID:   threadID,
		AuthorID:   c.me.ID,
		AuthorName: c.me.Name,
		Body:       body,
		Sent:       time.Now(),
	}
	c.messages[threadID] = append(c.messages[threadID], m)
	return m, nil
}

func (c *Client) DeleteLast(_ context.Context, threadID string, n int) (int, error) {
	c.record(Call{Op: "delete", Thread: threadID, N: n})
	if c.DeleteErr != nil {
		return 0, c.DeleteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[threadID]
	deleted := 0
	for i := len(msgs) - 1; i >= 0 && deleted < n; i-- {
		if msgs[i].AuthorID == c.me.ID {
			msgs = append(msgs[:i], msgs[i+1:]...)
			deleted++
		}
	}
	c.messages[threadID] = msgs
	return deleted, nil
}

func (c *Client) Thread(_ context.Context, idOrName string) (messen.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.threads {
		if t.ID == idOrName {
			return t, nil
		}
	}
	for _, t := range c.threads {
		if strings.EqualFold(t.Name, idOrName) {
			return t, nil
		}
	}
	return messen.Thread{}, messen.ErrThreadNotFound
}

func (c *Client) Threads(_ context.Context, limit int) ([]messen.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > len(c.threads) {
		limit = len(c.threads)
	}
	out := make([]messen.Thread, limit)
	copy(out, c.threads[:limit])
	return out, nil
}

func (c *Client) History(_ context.Context, threadID string, limit int) ([]messen.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[threadID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]messen.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Messages returns everything stored for a thread.
func (c *Client) Messages(threadID string) []messen.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]messen.Message, len(c.messages[threadID]))
	copy(out, c.messages[threadID])
	return out
}

func (c *Client) Users(context.Context) ([]messen.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]messen.User, len(c.users))
	copy(out, c.users)
	return out, nil
}

func (c *Client) DirectThread(_ context.Context, userName string) (messen.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.users {
		if !strings.EqualFold(u.Name, userName) || u.ID == c.me.ID {
			continue
		}
		t := messen.Thread{ID: "dm-" + u.ID, Name: u.Name, Participants: []string{c.me.ID, u.ID}}
		for _, existing := range c.threads {
			if existing.ID == t.ID {
				return existing, nil
			}
		}
		c.threads = append(c.threads, t)
		return t, nil
	}
	return messen.Thread{}, messen.ErrUserNotFound
}
