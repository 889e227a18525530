package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"super-mouse-ai/internal/config"
)

// writeOptions points every path at a temp dir and returns the options file.
func writeOptions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	opts := config.DefaultOptions()
	opts.DataDir = filepath.Join(dir, "data")
	opts.ModelsDir = filepath.Join(dir, "models")
	opts.LogFile = filepath.Join(dir, "smctl.log")
	opts.AutosaveInterval = 0

	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, config.SaveOptions(path, opts))
	return path
}

func run(t *testing.T, optionsPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--options", optionsPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, optionsPath string, args ...string) string {
	t.Helper()
	out, err := run(t, optionsPath, args...)
	require.NoError(t, err, out)
	return out
}

func TestVersion(t *testing.T) {
	out := mustRun(t, writeOptions(t), "version")
	require.Contains(t, out, "schema 1")
}

func TestSetGetShow(t *testing.T) {
	opts := writeOptions(t)

	mustRun(t, opts, "set", "theme", `"dark"`)
	mustRun(t, opts, "set", "threads", "4")

	require.Equal(t, "\"dark\"\n", mustRun(t, opts, "get", "theme"))
	require.Equal(t, "4\n", mustRun(t, opts, "get", "threads"))

	out := mustRun(t, opts, "show")
	require.Contains(t, out, "version: 1")
	require.Contains(t, out, "transcripts: 0")
	require.Contains(t, out, "theme: dark")
	require.Contains(t, out, "threads: 4")
}

func TestReadCommandsLeaveStoreUntouched(t *testing.T) {
	opts := writeOptions(t)

	mustRun(t, opts, "show")
	mustRun(t, opts, "get", "theme")
	mustRun(t, opts, "keys")
	mustRun(t, opts, "transcripts", "list")

	entries := mustRun(t, opts, "entries")
	require.NotContains(t, entries, "theme=")
	require.NotContains(t, entries, "threads=")
}

func TestSetRejectsBadInput(t *testing.T) {
	opts := writeOptions(t)

	_, err := run(t, opts, "set", "threads", "four")
	require.Error(t, err)

	_, err = run(t, opts, "set", "missing", "1")
	require.ErrorIs(t, err, config.ErrUnknownKey)

	_, err = run(t, opts, "set", "threads", "-1")
	require.Error(t, err)
	require.Equal(t, "0\n", mustRun(t, opts, "get", "threads"))
}

func TestKeysAndEntries(t *testing.T) {
	opts := writeOptions(t)

	keys := strings.Fields(mustRun(t, opts, "keys"))
	require.Len(t, keys, 19)
	require.Contains(t, keys, "downloadedModels")

	mustRun(t, opts, "set", "language", `"nl"`)
	require.Contains(t, mustRun(t, opts, "entries"), `language="nl"`)
}

func TestTranscriptCommands(t *testing.T) {
	opts := writeOptions(t)

	_, err := run(t, opts, "transcripts", "edit", "nothing yet")
	require.ErrorIs(t, err, errNoTranscript)

	mustRun(t, opts, "transcripts", "add", "first")
	require.Equal(t, "2 transcripts\n", mustRun(t, opts, "transcripts", "add", "--model", "ggml-base.en.bin", "second"))

	list := mustRun(t, opts, "transcripts", "list")
	require.Equal(t, "*   0  first\n    1  second  [ggml-base.en.bin]\n", list)

	require.Contains(t, mustRun(t, opts, "transcripts", "next"), "1  second")
	mustRun(t, opts, "transcripts", "edit", "second, edited")
	require.Contains(t, mustRun(t, opts, "tx", "list"), "*   1  second, edited")

	mustRun(t, opts, "transcripts", "remove")
	require.Equal(t, "*   0  first\n", mustRun(t, opts, "transcripts", "list"))

	require.Contains(t, mustRun(t, opts, "transcripts", "prev"), "already at the boundary")
}

func TestResetNeedsConfirmation(t *testing.T) {
	opts := writeOptions(t)
	mustRun(t, opts, "set", "theme", `"light"`)

	_, err := run(t, opts, "reset")
	require.Error(t, err)
	require.Equal(t, "\"light\"\n", mustRun(t, opts, "get", "theme"))

	require.Contains(t, mustRun(t, opts, "reset", "--yes"), "settings cleared")
	require.Equal(t, "\"system\"\n", mustRun(t, opts, "get", "theme"))
}

func TestRecommend(t *testing.T) {
	opts := writeOptions(t)

	out := mustRun(t, opts, "recommend", "--cores", "8", "--ram", "32", "--vram", "8")
	require.Contains(t, out, "file:       ggml-small.en.bin")
	require.Contains(t, out, "downloaded: false")

	out = mustRun(t, opts, "recommend", "--cores", "8", "--ram", "32", "--vram", "8", "--all-languages")
	require.Contains(t, out, "ggml-large-v3-turbo.bin")

	_, err := run(t, opts, "recommend", "--cores", "8", "--vram", "0")
	require.Error(t, err)

	_, err = run(t, opts, "recommend", "--compression", "max")
	require.Error(t, err)
}

func TestDoctor(t *testing.T) {
	out := mustRun(t, writeOptions(t), "doctor")
	require.Contains(t, out, "[pass] Settings store")
	require.Contains(t, out, "[warn] Models directory")
}
