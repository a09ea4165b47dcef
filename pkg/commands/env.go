package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tableflip.dev/messer/pkg/config"
	"tableflip.dev/messer/pkg/console"
	"tableflip.dev/messer/pkg/logging"
	"tableflip.dev/messer/pkg/prompt"
	"tableflip.dev/messer/pkg/runner/session"
	"tableflip.dev/messer/pkg/store"
)

// environment is everything a command needs to talk to the mailbox.
type environment struct {
	cfg    *config.Config
	log    *zap.Logger
	client *store.Mailbox
}

func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.BasePath(), 0o700); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", cfg.BasePath(), err)
	}

	log, err := logging.New(cfg, cfg.Debug)
	if err != nil {
		return nil, err
	}
	log.Debug("config",
		zap.String("dir", cfg.Dir),
		zap.String("mailbox", cfg.Mailbox),
		zap.Int("history", cfg.History))

	p, err := store.Load(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	mb := store.NewMailbox(p, filepath.Join(cfg.BasePath(), "session"), &prompt.Credentials{}, log)

	return &environment{cfg: cfg, log: log, client: mb}, nil
}

// Lifecycle returns a session runner reading commands from the process stdin.
func (e *environment) Lifecycle(cmd *cobra.Command) *session.Lifecycle {
	return &session.Lifecycle{
		Client:  e.client,
		History: e.cfg.History,
		Logger:  e.log,
		Debug:   e.cfg.Debug,
		OpenSurface: func() (console.Surface, error) {
			return console.Open(os.Stdin, cmd.OutOrStdout(), e.cfg.Prompt)
		},
	}
}

func (e *environment) Close() {
	_ = e.log.Sync()
}
