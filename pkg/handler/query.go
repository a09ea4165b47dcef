package handler

import (
	"context"

	"tableflip.dev/messer/pkg/printers"
	"tableflip.dev/messer/pkg/session"
)

const (
	usageHistory = `history "<thread>" [count]`
	usageRecent  = `recent [count]`
)

type queries struct {
	// limit is the default count for history and recent.
	limit int
}

func (q *queries) history(ctx context.Context, cmd string, s *session.Session) (string, error) {
	name, rest, ok := target(arguments(cmd))
	if !ok {
		return "", &UsageError{Usage: usageHistory}
	}
	n, ok := count(rest, q.limit)
	if !ok {
		return "", &UsageError{Usage: usageHistory}
	}
	thread, err := resolveThread(ctx, s.Client(), name, false)
	if err != nil {
		return "", err
	}
	msgs, err := s.Client().History(ctx, thread.ID, n)
	if err != nil {
		return "", err
	}
	pp := printers.PrettyPrint{Me: s.Client().Me().ID}
	return pp.History(thread, msgs), nil
}

func (q *queries) recent(ctx context.Context, cmd string, s *session.Session) (string, error) {
	n, ok := count(arguments(cmd), q.limit)
	if !ok {
		return "", &UsageError{Usage: usageRecent}
	}
	threads, err := s.Client().Threads(ctx, n)
	if err != nil {
		return "", err
	}
	pp := printers.PrettyPrint{}
	return pp.Threads(threads), nil
}

func contacts(ctx context.Context, _ string, s *session.Session) (string, error) {
	users, err := s.Client().Users(ctx)
	if err != nil {
		return "", err
	}
	pp := printers.PrettyPrint{Me: s.Client().Me().ID}
	return pp.Users(users), nil
}
