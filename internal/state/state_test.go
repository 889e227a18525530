package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"super-mouse-ai/internal/config"
	"super-mouse-ai/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func testOptions(t *testing.T) config.Options {
	t.Helper()
	dir := t.TempDir()
	opts := config.DefaultOptions()
	opts.DataDir = dir
	opts.ModelsDir = filepath.Join(dir, "models")
	opts.AutosaveInterval = 0
	return opts
}

func TestOpenRejectsInvalidOptions(t *testing.T) {
	opts := testOptions(t)
	opts.StoreFile = ""

	_, err := Open(opts, nil)
	require.Error(t, err)
}

func TestCloseSavesAndReopenRestores(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	s, err := Open(opts, nil)
	require.NoError(t, err)
	s.Registry.Init(ctx)
	s.Registry.Theme.Set(domain.ThemeDark)
	s.Registry.AddTranscription(domain.TranscriptRecord{Text: "kept"})
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	s, err = Open(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	s.Registry.Init(ctx)

	require.Equal(t, domain.ThemeDark, s.Registry.Theme.Get())
	require.Equal(t, 1, s.Registry.TranscriptCount())
	v, ok := s.Registry.Version(ctx)
	require.True(t, ok)
	require.Positive(t, v)
}

func TestCloseBeforeInitDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	s, err := Open(opts, nil)
	require.NoError(t, err)
	s.Registry.Init(ctx)
	s.Registry.Threads.Set(8)
	require.NoError(t, s.Close(ctx))

	s, err = Open(opts, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	s, err = Open(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	s.Registry.Init(ctx)
	require.Equal(t, 8, s.Registry.Threads.Get())
}

func TestTargetsPointAtOpenedFiles(t *testing.T) {
	opts := testOptions(t)
	s, err := Open(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	targets := s.Targets()
	require.Equal(t, opts.StorePath(), targets.StorePath)
	require.Equal(t, filepath.Join(opts.DataDir, "transcripts.json"), targets.TranscriptPath)
	require.Same(t, s.Store, targets.Store)
}

func TestStoreChangesReachTheBus(t *testing.T) {
	ctx := context.Background()
	s, err := Open(testOptions(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	s.Registry.Init(ctx)

	s.Registry.Language.Set("de")

	require.Eventually(t, func() bool {
		for _, e := range s.Events.Since(0) {
			if e.Key == config.KeyLanguage && string(e.Value) == `"de"` {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReleaseSkipsSaving(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	s, err := Open(opts, nil)
	require.NoError(t, err)
	s.Registry.Init(ctx)
	require.NoError(t, s.Registry.ClearData(ctx))
	require.NoError(t, s.Release())
	require.NoError(t, s.Close(ctx))

	s, err = Open(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	entries, err := s.Store.Entries(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}
