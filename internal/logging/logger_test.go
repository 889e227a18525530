package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolveLogPathUsesXDGStateHome(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("HOME", t.TempDir())

	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdgStateHome, "super-mouse-ai", "log.jsonl"), path)
}

func TestResolveLogPathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)

	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "super-mouse-ai", "log.jsonl"), path)
}

func TestNewWritesTraceEntriesWhenEnabled(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(Config{Level: "trace"})
	require.NoError(t, err)

	Trace(runtime.Logger, "unit-test-trace", zap.String("component", "logging"))
	runtime.Logger.Info("unit-test-info")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"level":"trace"`)
	require.Contains(t, string(contents), `"msg":"unit-test-trace"`)
	require.Contains(t, string(contents), `"component":"logging"`)
	require.Contains(t, string(contents), `"msg":"unit-test-info"`)

	stat, err := os.Stat(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestTraceSuppressedAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	Trace(logger, "hidden")
	logger.Debug("shown")
	Trace(nil, "ignored")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "shown", logs.All()[0].Message)
}

func TestParseLevel(t *testing.T) {
	for text, want := range map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"TRACE": TraceLevel,
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(text)
		require.NoError(t, err, text)
		require.Equal(t, want, got, text)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}
