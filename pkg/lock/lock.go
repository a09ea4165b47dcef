// Package lock holds the conversation a session is locked to.
package lock

import "errors"

// ErrNotLocked is returned when reading the target of an unlocked store.
var ErrNotLocked = errors.New("lock: not locked")

// Store records the locked target thread and whether locked sends are
// anonymous. It is owned by the goroutine that processes commands and is not
// safe for concurrent use.
type Store struct {
	target    string
	anonymous bool
}

// IsLocked reports whether a target is set.
func (s *Store) IsLocked() bool {
	return s.target != ""
}

// LockedTarget returns the locked thread id.
func (s *Store) LockedTarget() (string, error) {
	if !s.IsLocked() {
		return "", ErrNotLocked
	}
	return s.target, nil
}

// IsAnonymous is only ever true while locked.
func (s *Store) IsAnonymous() bool {
	return s.IsLocked() && s.anonymous
}

// Set locks the store to target. An empty target clears the lock.
func (s *Store) Set(target string, anonymous bool) {
	if target == "" {
		s.Clear()
		return
	}
	s.target = target
	s.anonymous = anonymous
}

func (s *Store) Clear() {
	s.target = ""
	s.anonymous = false
}
