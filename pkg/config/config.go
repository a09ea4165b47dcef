// Package config loads messer settings from flags, environment and an
// optional .messer.yaml file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment override, MESSER_DEBUG etc.
	EnvPrefix = "MESSER"

	// EnvConfigPath names an extra directory searched for .messer.yaml.
	EnvConfigPath = "MESSER_CONFIG_PATH"

	KeyDir     = "dir"
	KeyMailbox = "mailbox"
	KeyDebug   = "debug"
	KeyHistory = "history"
	KeyPrompt  = "prompt"
)

// Config is the resolved configuration for one messer process.
type Config struct {
	// Dir holds per user state: the session token and the debug log.
	Dir string
	// Mailbox is the shared local mailbox. Processes pointing at the same
	// mailbox can message each other.
	Mailbox string
	Debug   bool
	// History is the default message count for the history and recent
	// commands.
	History int
	Prompt  string
}

// BasePath is where session state is kept.
func (c *Config) BasePath() string {
	return c.Dir
}

// MailboxPath is where the local mailbox is kept.
func (c *Config) MailboxPath() string {
	return c.Mailbox
}

// LogPath is the debug log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Dir, "messer.log")
}

// Load reads configuration. Flags in fs that share a key name take
// precedence over environment and file values.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyDir, "~/.messer")
	v.SetDefault(KeyMailbox, "")
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyHistory, 5)
	v.SetDefault(KeyPrompt, "> ")

	v.SetConfigName(".messer") // .yaml is implicit
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if override := os.Getenv(EnvConfigPath); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if fs != nil {
		for _, key := range []string{KeyDir, KeyMailbox, KeyDebug} {
			if f := fs.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind %s: %w", key, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	dir, err := homedir.Expand(v.GetString(KeyDir))
	if err != nil {
		return nil, fmt.Errorf("config: expand dir: %w", err)
	}
	mailbox := v.GetString(KeyMailbox)
	if mailbox == "" {
		mailbox = filepath.Join(dir, "mailbox")
	}
	mailbox, err = homedir.Expand(mailbox)
	if err != nil {
		return nil, fmt.Errorf("config: expand mailbox: %w", err)
	}

	history := v.GetInt(KeyHistory)
	if history <= 0 {
		history = 5
	}

	return &Config{
		Dir:     dir,
		Mailbox: mailbox,
		Debug:   v.GetBool(KeyDebug),
		History: history,
		Prompt:  v.GetString(KeyPrompt),
	}, nil
}
