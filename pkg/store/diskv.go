// Package store keeps a local mailbox on disk. Several messer processes that
// share a mailbox directory can message each other; each one watches the
// directory for changes made by the others.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"
	"go.uber.org/zap"

	"tableflip.dev/messer/pkg/messen"
)

const (
	bucketUsers    = "users"
	bucketThreads  = "threads"
	bucketMessages = "messages"

	tempDir = ".tmp"
	// keepFile stops diskv from pruning the messages bucket when its last
	// thread directory is erased.
	keepFile = ".keep"
)

// ErrNotFound is returned when a key has no record.
var ErrNotFound = errors.New("store: not found")

// Config locates the mailbox.
type Config interface {
	MailboxPath() string
}

// UserRecord is a stored account. Only a bcrypt hash of the password is kept.
type UserRecord struct {
	messen.User
	Hash    []byte    `json:"hash"`
	Created time.Time `json:"created"`
}

// ThreadRecord is a stored thread plus the user that last changed it.
type ThreadRecord struct {
	messen.Thread
	ChangedBy string `json:"changedBy,omitempty"`
}

// Persistence defines the mailbox storage contract.
type Persistence interface {
	Users(ctx context.Context) []UserRecord
	User(id string) (UserRecord, error)
	StoreUser(u UserRecord) error

	Threads(ctx context.Context) []messen.Thread
	Thread(id string) (messen.Thread, error)
	ThreadRecord(id string) (ThreadRecord, error)
	// StoreThread writes t, recording changedBy as the user who made the
	// change.
	StoreThread(t messen.Thread, changedBy string) error

	// Messages returns a thread's messages, oldest first.
	Messages(ctx context.Context, threadID string) []messen.Message
	MessageAt(key string) (messen.Message, error)
	StoreMessage(m messen.Message) error
	DeleteMessage(m messen.Message) error

	Watch(ctx context.Context) (<-chan Event, error)
}

// Load opens the mailbox described by cfg. Unreadable records and watcher
// problems are logged to log, which may be nil.
func Load(cfg Config, log *zap.Logger) (Persistence, error) {
	if log == nil {
		log = zap.NewNop()
	}
	basePath := cfg.MailboxPath()
	if basePath == "" {
		return nil, errors.New("store: mailbox path required")
	}
	for _, bucket := range []string{bucketUsers, bucketThreads, bucketMessages, tempDir} {
		if err := os.MkdirAll(filepath.Join(basePath, bucket), 0o755); err != nil {
			return nil, fmt.Errorf("store: ensure %s: %w", bucket, err)
		}
	}
	if err := os.WriteFile(filepath.Join(basePath, bucketMessages, keepFile), nil, 0o644); err != nil {
		return nil, fmt.Errorf("store: ensure %s: %w", keepFile, err)
	}
	return &persistence{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		TempDir:           filepath.Join(basePath, tempDir),
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		// Other processes write here; a cache would serve stale threads.
		CacheSizeMax: 0,
	}), basePath: basePath, log: log.Named("store")}, nil
}

type persistence struct {
	d        *diskv.Diskv
	basePath string
	log      *zap.Logger
}

func (p *persistence) read(key string, v interface{}) error {
	if !p.d.Has(key) {
		return ErrNotFound
	}
	val, err := p.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}

func (p *persistence) write(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.d.Write(key, data)
}

func (p *persistence) Users(ctx context.Context) []UserRecord {
	all := make([]UserRecord, 0)
	for key := range p.d.KeysPrefix(bucketUsers+"-", ctx.Done()) {
		u := UserRecord{}
		if err := p.read(key, &u); err != nil {
			p.log.Warn("skipping unreadable record", zap.String("key", key), zap.Error(err))
			continue
		}
		all = append(all, u)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	return all
}

func (p *persistence) User(id string) (UserRecord, error) {
	u := UserRecord{}
	err := p.read(userKey(id), &u)
	return u, err
}

func (p *persistence) StoreUser(u UserRecord) error {
	if u.ID == "" {
		return errors.New("store: user id required")
	}
	return p.write(userKey(u.ID), u)
}

func (p *persistence) Threads(ctx context.Context) []messen.Thread {
	all := make([]messen.Thread, 0)
	for key := range p.d.KeysPrefix(bucketThreads+"-", ctx.Done()) {
		t := messen.Thread{}
		if err := p.read(key, &t); err != nil {
			p.log.Warn("skipping unreadable record", zap.String("key", key), zap.Error(err))
			continue
		}
		all = append(all, t)
	}
	return all
}

func (p *persistence) Thread(id string) (messen.Thread, error) {
	rec, err := p.ThreadRecord(id)
	return rec.Thread, err
}

func (p *persistence) ThreadRecord(id string) (ThreadRecord, error) {
	rec := ThreadRecord{}
	if id == "" || strings.ContainsAny(id, "-/") {
		return rec, ErrNotFound
	}
	err := p.read(threadKey(id), &rec)
	return rec, err
}

func (p *persistence) StoreThread(t messen.Thread, changedBy string) error {
	if t.ID == "" {
		return errors.New("store: thread id required")
	}
	return p.write(threadKey(t.ID), ThreadRecord{Thread: t, ChangedBy: changedBy})
}

func (p *persistence) Messages(ctx context.Context, threadID string) []messen.Message {
	all := make([]messen.Message, 0)
	for key := range p.d.KeysPrefix(bucketMessages+"-"+threadID+"-", ctx.Done()) {
		m, err := p.MessageAt(key)
		if err != nil {
			p.log.Warn("skipping unreadable record", zap.String("key", key), zap.Error(err))
			continue
		}
		all = append(all, m)
	}
	sortMessages(all)
	return all
}

func (p *persistence) MessageAt(key string) (messen.Message, error) {
	m := messen.Message{}
	err := p.read(key, &m)
	return m, err
}

func (p *persistence) StoreMessage(m messen.Message) error {
	if m.ID == "" || m.ThreadID == "" {
		return errors.New("store: message id and thread required")
	}
	return p.write(messageKey(m), m)
}

func (p *persistence) DeleteMessage(m messen.Message) error {
	return p.d.Erase(messageKey(m))
}

func sortMessages(msgs []messen.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Sent.Equal(msgs[j].Sent) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Sent.Before(msgs[j].Sent)
	})
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, "-")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return fmt.Sprintf("%s-%s", strings.Join(pathKey.Path, "-"), pathKey.FileName)
}

// newID returns a dash free id so it can be used inside keys.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func userKey(id string) string {
	return fmt.Sprintf("%s-%s", bucketUsers, id)
}

func threadKey(id string) string {
	return fmt.Sprintf("%s-%s", bucketThreads, id)
}

// messageKey makes `messages-thread-sent.id`; file names sort by send time.
func messageKey(m messen.Message) string {
	return fmt.Sprintf("%s-%s-%019d.%s", bucketMessages, m.ThreadID, m.Sent.UnixNano(), m.ID)
}
