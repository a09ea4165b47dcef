package handler

import (
	"strconv"
	"strings"
	"unicode"
)

// arguments drops the keyword from cmd.
func arguments(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	i := strings.IndexFunc(cmd, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(cmd[i:])
}

// target reads a thread reference from the front of args. It may be quoted,
// "some thread", or a single bare word.
func target(args string) (name, rest string, ok bool) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", "", false
	}
	if args[0] == '"' {
		end := strings.IndexByte(args[1:], '"')
		if end < 0 {
			return "", "", false
		}
		name = args[1 : 1+end]
		rest = strings.TrimSpace(args[2+end:])
	} else {
		i := strings.IndexFunc(args, unicode.IsSpace)
		if i < 0 {
			name = args
		} else {
			name, rest = args[:i], strings.TrimSpace(args[i:])
		}
	}
	name = strings.TrimSpace(name)
	return name, rest, name != ""
}

// count parses an optional positive count, returning def when s is empty.
func count(s string, def int) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
