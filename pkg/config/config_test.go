package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaultsMailboxUnderDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigPath, t.TempDir())
	t.Setenv("MESSER_DIR", dir)
	t.Setenv("MESSER_MAILBOX", "")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasePath() != dir {
		t.Fatalf("expected dir %q, got %q", dir, cfg.BasePath())
	}
	if want := filepath.Join(dir, "mailbox"); cfg.MailboxPath() != want {
		t.Fatalf("expected mailbox %q, got %q", want, cfg.MailboxPath())
	}
	if cfg.History != 5 {
		t.Fatalf("expected default history 5, got %d", cfg.History)
	}
	if cfg.LogPath() != filepath.Join(dir, "messer.log") {
		t.Fatalf("unexpected log path %q", cfg.LogPath())
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	cfgDir := t.TempDir()
	fileDir := t.TempDir()
	flagDir := t.TempDir()
	t.Setenv(EnvConfigPath, cfgDir)
	t.Setenv("MESSER_DIR", "")

	body := "dir: " + fileDir + "\nhistory: 12\ndebug: true\n"
	if err := os.WriteFile(filepath.Join(cfgDir, ".messer.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyDir, "", "")
	if err := fs.Parse([]string{"--dir", flagDir}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dir != flagDir {
		t.Fatalf("expected flag dir %q, got %q", flagDir, cfg.Dir)
	}
	if cfg.History != 12 {
		t.Fatalf("expected history from file, got %d", cfg.History)
	}
	if !cfg.Debug {
		t.Fatalf("expected debug from file")
	}
}
