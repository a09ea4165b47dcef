package handler

import (
	"context"
	"fmt"
	"strings"

	"tableflip.dev/messer/pkg/printers"
	"tableflip.dev/messer/pkg/session"
)

const usageLock = `lock "<thread>" [--secret]`

func lockThread(ctx context.Context, cmd string, s *session.Session) (string, error) {
	name, rest, ok := target(arguments(cmd))
	if !ok {
		return "", &UsageError{Usage: usageLock}
	}
	anonymous := false
	for _, flag := range strings.Fields(rest) {
		switch flag {
		case "--secret", "--anonymous":
			anonymous = true
		default:
			return "", &UsageError{Usage: usageLock}
		}
	}

	thread, err := resolveThread(ctx, s.Client(), name, true)
	if err != nil {
		return "", err
	}
	s.Lock().Set(thread.ID, anonymous)

	pp := printers.PrettyPrint{}
	msg := fmt.Sprintf("Locked on to %s. Everything you type is sent there; type 'unlock' to stop.", thread.Name)
	if anonymous {
		msg += "\nSecret mode: each message is deleted right after it is sent."
	}
	return pp.Notice(msg), nil
}

func unlockThread(_ context.Context, _ string, s *session.Session) (string, error) {
	pp := printers.PrettyPrint{}
	locked, err := s.Lock().LockedTarget()
	if err != nil {
		return pp.Notice("Not locked."), nil
	}
	s.Lock().Clear()
	return pp.Notice(fmt.Sprintf("Unlocked from %s.", locked)), nil
}
