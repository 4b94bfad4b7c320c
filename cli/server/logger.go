package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hdcustody/walletd/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// handleLoggingParams reads logging configuration and returns the
// application logger plus a closer that flushes it.
func handleLoggingParams(debug bool, cfg config.Config) (*zap.Logger, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("logger: %w", err)
		}
		cc.OutputPaths = append(cc.OutputPaths, logPath)
	}

	log, err := cc.Build()
	if err != nil {
		return nil, nil, err
	}
	return log, func() error { return log.Sync() }, nil
}
