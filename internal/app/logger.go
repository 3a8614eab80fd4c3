package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/config"
)

// NewLogger builds the process logger. With fileOnly set, logs never reach
// the terminal, which the TUI owns.
func NewLogger(cfg *config.Config, fileOnly bool) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		if fileOnly {
			zc.OutputPaths = []string{cfg.LogFile}
			zc.ErrorOutputPaths = []string{cfg.LogFile}
		} else {
			zc.OutputPaths = append(zc.OutputPaths, cfg.LogFile)
		}
	} else if fileOnly {
		return zap.NewNop(), nil
	}
	return zc.Build()
}
