// Package logging builds the zap logger for a messer process.
//
// The terminal belongs to the interactive loop, so debug logs go to a file
// in the state directory. Without debug everything is discarded.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the subset of configuration the logger needs.
type Config interface {
	LogPath() string
}

// New returns a debug level logger writing to cfg.LogPath when debug is set,
// and a no-op logger otherwise.
func New(cfg Config, debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}

	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	zc.DisableStacktrace = true

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return log.Named("messer"), nil
}
