// Package handler implements the commands a messer session understands and
// the registry that maps command keywords to them.
package handler

import (
	"context"
	"fmt"
	"sort"

	"tableflip.dev/messer/pkg/session"
)

// Keywords the router resolves directly.
const (
	Message = "message"
	Delete  = "delete"
	Unlock  = "unlock"
)

// Handler performs one command. cmd is the full command line including the
// keyword; the handler validates its own arguments.
type Handler interface {
	Handle(ctx context.Context, cmd string, s *session.Session) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd string, s *session.Session) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd string, s *session.Session) (string, error) {
	return f(ctx, cmd, s)
}

// Command binds a keyword and its aliases to a Handler.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Short   string
	Handler Handler
}

// UsageError reports malformed command arguments.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("invalid syntax, usage: %s", e.Usage)
}

// Registry resolves keywords to handlers. It is built once at startup and is
// read only afterwards.
type Registry struct {
	commands []Command
	index    map[string]Handler
}

// NewRegistry builds a registry, rejecting duplicate keywords.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{index: make(map[string]Handler)}
	for _, c := range cmds {
		if err := r.register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(c Command) error {
	if c.Name == "" || c.Handler == nil {
		return fmt.Errorf("handler: command %q needs a name and a handler", c.Name)
	}
	for _, k := range append([]string{c.Name}, c.Aliases...) {
		if _, found := r.index[k]; found {
			return fmt.Errorf("handler: duplicate keyword %q", k)
		}
		r.index[k] = c.Handler
	}
	r.commands = append(r.commands, c)
	return nil
}

// Resolve returns the handler for keyword.
func (r *Registry) Resolve(keyword string) (Handler, bool) {
	h, ok := r.index[keyword]
	return h, ok
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
