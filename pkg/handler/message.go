package handler

import (
	"context"
	"errors"
	"fmt"

	"tableflip.dev/messer/pkg/messen"
	"tableflip.dev/messer/pkg/session"
)

const (
	usageMessage = `message "<thread>" <body>`
	usageReply   = `reply <body>`
	usageDelete  = `delete "<thread>" [count]`
)

// ErrNoLastThread is returned by reply before any thread has been active.
var ErrNoLastThread = errors.New("no thread to reply to")

func sendMessage(ctx context.Context, cmd string, s *session.Session) (string, error) {
	name, body, ok := target(arguments(cmd))
	if !ok || body == "" {
		return "", &UsageError{Usage: usageMessage}
	}
	thread, err := resolveThread(ctx, s.Client(), name, true)
	if err != nil {
		return "", err
	}
	if _, err := s.Client().Send(ctx, thread.ID, body); err != nil {
		return "", err
	}
	return "", nil
}

func reply(ctx context.Context, cmd string, s *session.Session) (string, error) {
	body := arguments(cmd)
	if body == "" {
		return "", &UsageError{Usage: usageReply}
	}
	thread, ok := s.LastThread()
	if !ok {
		return "", ErrNoLastThread
	}
	if _, err := s.Client().Send(ctx, thread.ID, body); err != nil {
		return "", err
	}
	return "", nil
}

func deleteMessages(ctx context.Context, cmd string, s *session.Session) (string, error) {
	name, rest, ok := target(arguments(cmd))
	if !ok {
		return "", &UsageError{Usage: usageDelete}
	}
	n, ok := count(rest, 1)
	if !ok {
		return "", &UsageError{Usage: usageDelete}
	}
	thread, err := resolveThread(ctx, s.Client(), name, false)
	if err != nil {
		return "", err
	}
	deleted, err := s.Client().DeleteLast(ctx, thread.ID, n)
	if err != nil {
		return "", err
	}
	if deleted == 1 {
		return fmt.Sprintf("Deleted 1 message from %s", thread.Name), nil
	}
	return fmt.Sprintf("Deleted %d messages from %s", deleted, thread.Name), nil
}

// resolveThread finds a thread by id or name. With direct set, a name that
// matches a user but no thread opens a direct thread with that user.
func resolveThread(ctx context.Context, c messen.Client, name string, direct bool) (messen.Thread, error) {
	thread, err := c.Thread(ctx, name)
	if err == nil {
		return thread, nil
	}
	if !direct || !errors.Is(err, messen.ErrThreadNotFound) {
		return messen.Thread{}, err
	}
	thread, err = c.DirectThread(ctx, name)
	if errors.Is(err, messen.ErrUserNotFound) {
		return messen.Thread{}, fmt.Errorf("no thread or user named %q: %w", name, messen.ErrThreadNotFound)
	}
	return thread, err
}
