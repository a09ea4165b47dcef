package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/peterbourgon/diskv/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tableflip.dev/messer/pkg/messen"
)

const (
	sessionKey = "session"

	// seenWindow is how many recent message ids Listen remembers to drop
	// duplicate notifications for the same file.
	seenWindow = 4096
)

// ErrSelfThread is returned when opening a direct thread with yourself.
var ErrSelfThread = errors.New("store: cannot open a direct thread with yourself")

type sessionRecord struct {
	UserID  string    `json:"user"`
	Token   string    `json:"token"`
	Created time.Time `json:"created"`
}

// Mailbox is a messen.Client backed by a local mailbox. The first login with
// an unknown name registers that name.
type Mailbox struct {
	store    Persistence
	state    *diskv.Diskv
	prompter messen.Prompter
	log      *zap.Logger

	mu       sync.RWMutex
	me       messen.User
	loggedIn bool
}

var _ messen.Client = (*Mailbox)(nil)

// NewMailbox returns a client for store. statePath holds this user's session
// token and should not be shared between users.
func NewMailbox(store Persistence, statePath string, prompter messen.Prompter, log *zap.Logger) *Mailbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailbox{
		store: store,
		state: diskv.New(diskv.Options{
			BasePath:     statePath,
			CacheSizeMax: 0,
			FilePerm:     0o600,
			PathPerm:     0o700,
		}),
		prompter: prompter,
		log:      log.Named("mailbox"),
	}
}

func (m *Mailbox) Me() messen.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.me
}

func (m *Mailbox) current() (messen.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loggedIn {
		return messen.User{}, messen.ErrNotLoggedIn
	}
	return m.me, nil
}

// Login resumes a saved session or prompts for credentials.
func (m *Mailbox) Login(ctx context.Context) error {
	if u, ok := m.resume(); ok {
		m.setMe(u)
		m.log.Debug("resumed session", zap.String("user", u.ID))
		return nil
	}

	if m.prompter == nil {
		return fmt.Errorf("%w: no way to ask for credentials", messen.ErrBadCredentials)
	}
	creds, err := m.prompter.Credentials()
	if err != nil {
		return err
	}
	name := strings.TrimSpace(creds.Name)
	if name == "" || creds.Password == "" {
		return fmt.Errorf("%w: name and password required", messen.ErrBadCredentials)
	}

	rec, err := m.userByName(ctx, name)
	switch {
	case errors.Is(err, messen.ErrUserNotFound):
		rec, err = m.register(name, creds.Password)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := bcrypt.CompareHashAndPassword(rec.Hash, []byte(creds.Password)); err != nil {
			m.log.Debug("password mismatch", zap.String("user", rec.ID))
			return messen.ErrBadCredentials
		}
	}

	if err := m.saveSession(rec.User); err != nil {
		return err
	}
	m.setMe(rec.User)
	m.log.Info("logged in", zap.String("user", rec.ID), zap.String("name", rec.Name))
	return nil
}

func (m *Mailbox) resume() (messen.User, bool) {
	if !m.state.Has(sessionKey) {
		return messen.User{}, false
	}
	data, err := m.state.Read(sessionKey)
	if err != nil {
		return messen.User{}, false
	}
	rec := sessionRecord{}
	if err := json.Unmarshal(data, &rec); err != nil || rec.UserID == "" {
		return messen.User{}, false
	}
	u, err := m.store.User(rec.UserID)
	if err != nil {
		return messen.User{}, false
	}
	return u.User, true
}

func (m *Mailbox) saveSession(u messen.User) error {
	data, err := json.Marshal(sessionRecord{UserID: u.ID, Token: newID(), Created: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := m.state.Write(sessionKey, data); err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

func (m *Mailbox) register(name, password string) (UserRecord, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return UserRecord{}, fmt.Errorf("store: hash password: %w", err)
	}
	rec := UserRecord{
		User:    messen.User{ID: newID(), Name: name},
		Hash:    hash,
		Created: time.Now().UTC(),
	}
	if err := m.store.StoreUser(rec); err != nil {
		return UserRecord{}, fmt.Errorf("store: register %s: %w", name, err)
	}
	m.log.Info("registered user", zap.String("user", rec.ID), zap.String("name", name))
	return rec, nil
}

func (m *Mailbox) setMe(u messen.User) {
	m.mu.Lock()
	m.me = u
	m.loggedIn = true
	m.mu.Unlock()
}

// Logout forgets the saved session. It works without a prior Login so a
// stale session can be removed from the command line.
func (m *Mailbox) Logout(context.Context) error {
	m.mu.Lock()
	m.me = messen.User{}
	m.loggedIn = false
	m.mu.Unlock()

	if err := m.state.Erase(sessionKey); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: erase session: %w", err)
	}
	return nil
}

// Listen translates mailbox changes into events for threads the user is in.
func (m *Mailbox) Listen(ctx context.Context) (<-chan messen.Event, error) {
	me, err := m.current()
	if err != nil {
		return nil, err
	}
	changes, err := m.store.Watch(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]messen.Thread)
	for _, t := range m.store.Threads(ctx) {
		if member(t, me.ID) {
			known[t.ID] = t
		}
	}

	out := make(chan messen.Event, 64)
	go func() {
		defer close(out)
		seen, _ := lru.New[string, struct{}](seenWindow)
		for change := range changes {
			ev, ok := m.translate(me, change, known, seen)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *Mailbox) translate(me messen.User, change Event, known map[string]messen.Thread, seen *lru.Cache[string, struct{}]) (messen.Event, bool) {
	switch change.Type {
	case EventMessageStored:
		msg, err := m.store.MessageAt(change.Key)
		if err != nil {
			// Deleted before we got to it.
			return nil, false
		}
		if seen.Contains(msg.ID) {
			return nil, false
		}
		seen.Add(msg.ID, struct{}{})
		t, err := m.store.Thread(msg.ThreadID)
		if err != nil || !member(t, me.ID) {
			return nil, false
		}
		return messen.MessageEvent{
			Message: msg,
			Thread:  m.display(t, me),
			Self:    msg.AuthorID == me.ID,
		}, true

	case EventThreadChanged:
		rec, err := m.store.ThreadRecord(change.ThreadID)
		t := rec.Thread
		if err != nil || !member(t, me.ID) {
			return nil, false
		}
		prev, found := known[t.ID]
		known[t.ID] = t
		kind := messen.ThreadUpdated
		switch {
		case !found:
			kind = messen.ThreadCreated
		case prev.Name != t.Name:
			kind = messen.ThreadRenamed
		case sameParticipants(prev, t):
			return nil, false
		}
		return messen.ThreadEvent{Kind: kind, Thread: m.display(t, me), Actor: m.actor(rec.ChangedBy)}, true
	}
	return nil, false
}

func (m *Mailbox) Send(ctx context.Context, threadID, body string) (messen.Message, error) {
	me, err := m.current()
	if err != nil {
		return messen.Message{}, err
	}
	if _, err := m.thread(threadID, me); err != nil {
		return messen.Message{}, err
	}
	msg := messen.Message{
		ID:         newID(),
		ThreadID:   threadID,
		AuthorID:   me.ID,
		AuthorName: me.Name,
		Body:       body,
		Sent:       time.Now().UTC(),
	}
	if err := m.store.StoreMessage(msg); err != nil {
		return messen.Message{}, fmt.Errorf("store: send: %w", err)
	}
	m.log.Debug("sent message", zap.String("thread", threadID), zap.String("message", msg.ID))
	return msg, nil
}

func (m *Mailbox) DeleteLast(ctx context.Context, threadID string, n int) (int, error) {
	me, err := m.current()
	if err != nil {
		return 0, err
	}
	if _, err := m.thread(threadID, me); err != nil {
		return 0, err
	}
	msgs := m.store.Messages(ctx, threadID)
	deleted := 0
	for i := len(msgs) - 1; i >= 0 && deleted < n; i-- {
		if msgs[i].AuthorID != me.ID {
			continue
		}
		if err := m.store.DeleteMessage(msgs[i]); err != nil {
			return deleted, fmt.Errorf("store: delete %s: %w", msgs[i].ID, err)
		}
		deleted++
	}
	m.log.Debug("deleted messages", zap.String("thread", threadID), zap.Int("count", deleted))
	return deleted, nil
}

func (m *Mailbox) Thread(ctx context.Context, idOrName string) (messen.Thread, error) {
	me, err := m.current()
	if err != nil {
		return messen.Thread{}, err
	}
	if t, err := m.thread(idOrName, me); err == nil {
		return m.display(t, me), nil
	}
	for _, t := range m.mine(ctx, me) {
		if strings.EqualFold(t.Name, idOrName) {
			return t, nil
		}
	}
	return messen.Thread{}, messen.ErrThreadNotFound
}

func (m *Mailbox) Threads(ctx context.Context, limit int) ([]messen.Thread, error) {
	me, err := m.current()
	if err != nil {
		return nil, err
	}
	threads := m.mine(ctx, me)
	for i, t := range threads {
		if msgs := m.store.Messages(ctx, t.ID); len(msgs) > 0 {
			if last := msgs[len(msgs)-1].Sent; last.After(t.Updated) {
				threads[i].Updated = last
			}
		}
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].Updated.After(threads[j].Updated)
	})
	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

func (m *Mailbox) History(ctx context.Context, threadID string, limit int) ([]messen.Message, error) {
	me, err := m.current()
	if err != nil {
		return nil, err
	}
	if _, err := m.thread(threadID, me); err != nil {
		return nil, err
	}
	msgs := m.store.Messages(ctx, threadID)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *Mailbox) Users(ctx context.Context) ([]messen.User, error) {
	if _, err := m.current(); err != nil {
		return nil, err
	}
	recs := m.store.Users(ctx)
	users := make([]messen.User, len(recs))
	for i, r := range recs {
		users[i] = r.User
	}
	return users, nil
}

func (m *Mailbox) DirectThread(ctx context.Context, userName string) (messen.Thread, error) {
	me, err := m.current()
	if err != nil {
		return messen.Thread{}, err
	}
	other, err := m.userByName(ctx, userName)
	if err != nil {
		return messen.Thread{}, err
	}
	if other.ID == me.ID {
		return messen.Thread{}, ErrSelfThread
	}

	want := messen.Thread{Participants: []string{me.ID, other.ID}}
	for _, t := range m.store.Threads(ctx) {
		if t.Name == "" && sameParticipants(t, want) {
			return m.display(t, me), nil
		}
	}

	t := messen.Thread{
		ID:           newID(),
		Participants: want.Participants,
		Updated:      time.Now().UTC(),
	}
	if err := m.store.StoreThread(t, me.ID); err != nil {
		return messen.Thread{}, fmt.Errorf("store: create thread: %w", err)
	}
	m.log.Debug("created direct thread", zap.String("thread", t.ID), zap.String("with", other.ID))
	return m.display(t, me), nil
}

func (m *Mailbox) userByName(ctx context.Context, name string) (UserRecord, error) {
	for _, u := range m.store.Users(ctx) {
		if strings.EqualFold(u.Name, name) {
			return u, nil
		}
	}
	return UserRecord{}, messen.ErrUserNotFound
}

// thread loads a thread by id, hiding threads the user is not part of.
func (m *Mailbox) thread(id string, me messen.User) (messen.Thread, error) {
	t, err := m.store.Thread(id)
	if errors.Is(err, ErrNotFound) || (err == nil && !member(t, me.ID)) {
		return messen.Thread{}, messen.ErrThreadNotFound
	}
	return t, err
}

// mine returns the user's threads with display names.
func (m *Mailbox) mine(ctx context.Context, me messen.User) []messen.Thread {
	var out []messen.Thread
	for _, t := range m.store.Threads(ctx) {
		if member(t, me.ID) {
			out = append(out, m.display(t, me))
		}
	}
	return out
}

// display names unnamed threads after the other participants.
func (m *Mailbox) display(t messen.Thread, me messen.User) messen.Thread {
	if t.Name != "" {
		return t
	}
	names := make([]string, 0, len(t.Participants))
	for _, id := range t.Participants {
		if id == me.ID {
			continue
		}
		if u, err := m.store.User(id); err == nil {
			names = append(names, u.Name)
		} else {
			names = append(names, id)
		}
	}
	if len(names) == 0 {
		names = append(names, me.Name)
	}
	t.Name = strings.Join(names, ", ")
	return t
}

// actor resolves the user behind a thread change. Unknown ids are kept so
// the event still says who it was.
func (m *Mailbox) actor(id string) messen.User {
	if id == "" {
		return messen.User{}
	}
	if u, err := m.store.User(id); err == nil {
		return u.User
	}
	return messen.User{ID: id}
}

func member(t messen.Thread, userID string) bool {
	for _, id := range t.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

func sameParticipants(a, b messen.Thread) bool {
	if len(a.Participants) != len(b.Participants) {
		return false
	}
	set := make(map[string]struct{}, len(a.Participants))
	for _, id := range a.Participants {
		set[id] = struct{}{}
	}
	for _, id := range b.Participants {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
