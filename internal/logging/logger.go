// Package logging configures runtime JSONL logging output.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below debug.
const TraceLevel = zapcore.DebugLevel - 1

const appName = "super-mouse-ai"

// Config selects the log level and destinations.
type Config struct {
	Level   string
	Path    string // empty resolves to the XDG state directory
	Console bool   // mirror entries to stderr
}

// Runtime bundles the configured logger and its output file lifecycle.
type Runtime struct {
	Logger *zap.Logger
	Path   string
	file   *os.File
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.Logger != nil {
		_ = r.Logger.Sync()
	}
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// New builds a JSONL logger rooted at the resolved state path.
func New(cfg Config) (Runtime, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return Runtime{}, err
	}

	path := cfg.Path
	if path == "" {
		path, err = resolveLogPath()
		if err != nil {
			return Runtime{}, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log file: %w", err)
	}

	enabler := zap.NewAtomicLevelAt(level)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(f), enabler),
	}
	if cfg.Console {
		consoleCfg := encoderConfig()
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), enabler))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named("smai")
	return Runtime{Logger: logger, Path: path, file: f}, nil
}

// ParseLevel accepts "trace" in addition to zap's level names.
func ParseLevel(text string) (zapcore.Level, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	switch text {
	case "":
		return zapcore.InfoLevel, nil
	case "trace":
		return TraceLevel, nil
	}
	level, err := zapcore.ParseLevel(text)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// Trace logs msg at TraceLevel.
func Trace(logger *zap.Logger, msg string, fields ...zap.Field) {
	if logger == nil {
		return
	}
	if ce := logger.Check(TraceLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "msg"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = encodeLevel
	return cfg
}

func encodeLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(level, enc)
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appName, "log.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", appName, "log.jsonl"), nil
}
