package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/messer/pkg/session"
)

func clearScreen(_ context.Context, _ string, s *session.Session) (string, error) {
	if surface := s.Surface(); surface != nil {
		surface.Clear()
	}
	s.ClearUnread()
	return "", nil
}

func logout(ctx context.Context, _ string, s *session.Session) (string, error) {
	if err := s.Terminate(ctx); err != nil {
		return "", fmt.Errorf("logout: %w", err)
	}
	return "", nil
}

func help(r *Registry) HandlerFunc {
	return func(context.Context, string, *session.Session) (string, error) {
		bold := color.New(color.Bold)
		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.Wrap = true
		tbl.MaxColWidth = 60
		tbl.AddRow(bold.Sprint("Command"), bold.Sprint("Description"))
		for _, c := range r.Commands() {
			usage := c.Usage
			if len(c.Aliases) > 0 {
				usage += fmt.Sprintf(" (%s)", strings.Join(c.Aliases, ", "))
			}
			tbl.AddRow(usage, c.Short)
		}
		return tbl.String(), nil
	}
}
