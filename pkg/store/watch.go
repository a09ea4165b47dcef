package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// EventType describes the nature of a mailbox change notification.
type EventType int

const (
	// EventMessageStored indicates a message file was written.
	EventMessageStored EventType = iota

	// EventThreadChanged indicates a thread record was created or rewritten.
	EventThreadChanged
)

// Event is emitted by Persistence.Watch when the mailbox changes. Key can be
// passed to MessageAt for EventMessageStored.
type Event struct {
	Type     EventType
	ThreadID string
	Key      string
}

// Watch streams change events until ctx is cancelled. Unlike a UI refresh
// signal every message matters, so sends block until the consumer is ready
// or ctx is done. The channel is closed once ctx is done or the watcher fails.
func (p *persistence) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() {
			if err := watcher.Close(); err != nil {
				p.log.Warn("watcher close", zap.Error(err))
			}
		})
	}

	dirs, err := collectDirs(p.basePath)
	if err != nil {
		closeWatcher()
		return nil, fmt.Errorf("store: enumerate directories: %w", err)
	}

	watched := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			closeWatcher()
			return nil, fmt.Errorf("store: watch %s: %w", dir, err)
		}
		watched[dir] = struct{}{}
	}

	events := make(chan Event, 64)

	go func() {
		defer close(events)
		defer closeWatcher()

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// watchTree starts watching dir and everything below it, and reports
		// files that were written before the watch was in place.
		watchTree := func(dir string) bool {
			found, err := collectDirs(dir)
			if err != nil {
				p.log.Warn("enumerate directory", zap.String("dir", dir), zap.Error(err))
				return true
			}
			for _, d := range found {
				if _, ok := watched[d]; ok {
					continue
				}
				if err := watcher.Add(d); err != nil {
					p.log.Warn("watch directory", zap.String("dir", d), zap.Error(err))
					continue
				}
				watched[d] = struct{}{}
			}
			for _, f := range collectFiles(dir) {
				if ev, ok := p.eventForPath(f); ok && !send(ev) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.log.Warn("watcher", zap.Error(err))
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&fsnotify.Remove == fsnotify.Remove {
					delete(watched, filepath.Clean(evt.Name))
					continue
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}

				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						if !hidden(p.basePath, evt.Name) && !watchTree(filepath.Clean(evt.Name)) {
							return
						}
						continue
					}
				}

				if ev, ok := p.eventForPath(evt.Name); ok && !send(ev) {
					return
				}
			}
		}
	}()

	return events, nil
}

// collectDirs walks base and returns all directories that should be watched.
// Hidden directories, such as the diskv temp dir, are skipped.
func collectDirs(base string) ([]string, error) {
	dirs := []string{filepath.Clean(base)}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() || path == base {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

func collectFiles(base string) []string {
	var files []string
	_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != base && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// eventForPath maps a file in the mailbox to the change it represents.
func (p *persistence) eventForPath(path string) (Event, bool) {
	rel, err := filepath.Rel(p.basePath, path)
	if err != nil || rel == "." {
		return Event{}, false
	}
	parts := strings.Split(rel, string(os.PathSeparator))
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, ".") {
			return Event{}, false
		}
	}
	switch {
	case len(parts) == 3 && parts[0] == bucketMessages:
		return Event{
			Type:     EventMessageStored,
			ThreadID: parts[1],
			Key:      strings.Join(parts, "-"),
		}, true
	case len(parts) == 2 && parts[0] == bucketThreads:
		return Event{
			Type:     EventThreadChanged,
			ThreadID: parts[1],
			Key:      strings.Join(parts, "-"),
		}, true
	}
	return Event{}, false
}

func hidden(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
