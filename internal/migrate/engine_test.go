package migrate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/filestore"
	"super-mouse-ai/internal/kvstore"
	"super-mouse-ai/internal/transcripts"
)

// flakyStore fails deletes of one key while failDelete is set.
type flakyStore struct {
	kvstore.Store
	failKey    string
	failDelete atomic.Bool
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if key == f.failKey && f.failDelete.Load() {
		return errors.New("store unavailable")
	}
	return f.Store.Delete(ctx, key)
}

// flakyFS fails every truncating open while failWrites is set.
type flakyFS struct {
	filestore.FS
	failWrites atomic.Bool
}

func (f *flakyFS) Open(name string, flag filestore.Flag) (filestore.File, error) {
	if flag.Truncate && f.failWrites.Load() {
		return nil, errors.New("read-only filesystem")
	}
	return f.FS.Open(name, flag)
}

type fixture struct {
	store *flakyStore
	fs    *flakyFS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := kvstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{
		store: &flakyStore{Store: s, failKey: LegacyTranscriptsKey},
		fs:    &flakyFS{FS: filestore.NewMem()},
	}
}

func (f *fixture) newLog(t *testing.T) *transcripts.Log {
	t.Helper()
	l := transcripts.New(f.fs, "transcripts.json", transcripts.WithAutosaveInterval(0))
	t.Cleanup(l.CleanUp)
	return l
}

func (f *fixture) version(t *testing.T) (int, bool) {
	t.Helper()
	v, ok, err := ReadVersion(context.Background(), f.store)
	require.NoError(t, err)
	return v, ok
}

func (f *fixture) has(t *testing.T, key string) bool {
	t.Helper()
	ok, err := f.store.Has(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func legacyRecords(texts ...string) []domain.TranscriptRecord {
	out := make([]domain.TranscriptRecord, 0, len(texts))
	for _, text := range texts {
		out = append(out, domain.TranscriptRecord{Text: text, Provider: LegacyProvider})
	}
	return out
}

// TestRunMovesLegacyTranscripts checks a full v0 to v1 upgrade.
func TestRunMovesLegacyTranscripts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, LegacyTranscriptsKey, []string{"hello", "world"}))
	require.NoError(t, f.store.Set(ctx, TelemetryConsentKey, true))
	log := f.newLog(t)

	result, err := New(f.store, log, nil).Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 0, result.From)
	require.Equal(t, CurrentVersion, result.To)
	require.Equal(t, []string{"legacy-transcripts", "reload-transcripts", "drop-telemetry-consent"}, result.Applied)

	if diff := cmp.Diff(legacyRecords("hello", "world"), log.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	require.False(t, f.has(t, LegacyTranscriptsKey))
	require.False(t, f.has(t, TelemetryConsentKey))
	v, ok := f.version(t)
	require.True(t, ok)
	require.Equal(t, CurrentVersion, v)
}

// TestRunWithoutLegacyDataSkips checks steps with nothing to do are skipped.
func TestRunWithoutLegacyDataSkips(t *testing.T) {
	f := newFixture(t)
	log := f.newLog(t)

	result, err := New(f.store, log, nil).Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"reload-transcripts"}, result.Applied)
	require.Equal(t, []string{"legacy-transcripts", "drop-telemetry-consent"}, result.Skipped)
	require.True(t, log.Loaded())
}

// TestRunTwiceDoesNotDuplicate checks a crash-and-retry keeps one copy of each record.
func TestRunTwiceDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, LegacyTranscriptsKey, []string{"a", "b"}))

	_, err := New(f.store, f.newLog(t), nil).Run(ctx, 0)
	require.NoError(t, err)

	log := f.newLog(t)
	_, err = New(f.store, log, nil).Run(ctx, 0)
	require.NoError(t, err)

	require.Equal(t, legacyRecords("a", "b"), log.Records())
	require.False(t, f.has(t, LegacyTranscriptsKey))
}

// TestSaveFailureKeepsLegacyKey checks a failed save aborts before deleting source data.
func TestSaveFailureKeepsLegacyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, LegacyTranscriptsKey, []string{"precious"}))
	f.fs.failWrites.Store(true)

	result, err := New(f.store, f.newLog(t), nil).Run(ctx, 0)
	require.ErrorIs(t, err, ErrStepFailed)
	require.ErrorContains(t, err, "legacy-transcripts")
	require.Equal(t, 0, result.To)
	require.True(t, f.has(t, LegacyTranscriptsKey))
	_, ok := f.version(t)
	require.False(t, ok)

	f.fs.failWrites.Store(false)
	log := f.newLog(t)
	_, err = New(f.store, log, nil).Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, legacyRecords("precious"), log.Records())
}

// TestDeleteFailureThenRetryDoesNotDuplicate checks saved-but-not-deleted legacy data is deduplicated.
func TestDeleteFailureThenRetryDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, LegacyTranscriptsKey, []string{"same", "same", "other"}))
	f.store.failDelete.Store(true)

	_, err := New(f.store, f.newLog(t), nil).Run(ctx, 0)
	require.ErrorIs(t, err, ErrStepFailed)
	require.True(t, f.has(t, LegacyTranscriptsKey))
	_, ok := f.version(t)
	require.False(t, ok)

	f.store.failDelete.Store(false)
	log := f.newLog(t)
	_, err = New(f.store, log, nil).Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, legacyRecords("same", "same", "other"), log.Records())
}

// TestLegacyMergeKeepsExistingRecords checks migrated records append after current ones.
func TestLegacyMergeKeepsExistingRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := domain.TranscriptRecord{Text: "same", Model: "ggml-base.bin", Provider: domain.ProviderLocal}
	seed := f.newLog(t)
	seed.Adopt([]domain.TranscriptRecord{existing})
	require.NoError(t, seed.Flush())
	require.NoError(t, f.store.Set(ctx, LegacyTranscriptsKey, []string{"same"}))

	log := f.newLog(t)
	_, err := New(f.store, log, nil).Run(ctx, 0)
	require.NoError(t, err)

	want := append([]domain.TranscriptRecord{existing}, legacyRecords("same")...)
	require.Equal(t, want, log.Records())
}

// TestRunAtCurrentVersionIsNoop checks nothing is touched when already current.
func TestRunAtCurrentVersionIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, TelemetryConsentKey, false))
	log := f.newLog(t)

	result, err := New(f.store, log, nil).Run(ctx, CurrentVersion)
	require.NoError(t, err)
	require.Empty(t, result.Applied)
	require.True(t, f.has(t, TelemetryConsentKey))
	require.False(t, log.Loaded())
}

// TestVersionAdvancesPerCompletedGroup checks a later failure keeps earlier versions.
func TestVersionAdvancesPerCompletedGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var ran []string
	step := func(name string, version int, err error) Step {
		return Step{Name: name, Version: version, Apply: func(context.Context, *Engine) (bool, error) {
			ran = append(ran, name)
			return true, err
		}}
	}

	engine := New(f.store, f.newLog(t), nil).WithSteps([]Step{
		step("one-a", 1, nil),
		step("one-b", 1, nil),
		step("two", 2, nil),
		step("three", 3, errors.New("boom")),
	})

	result, err := engine.Run(ctx, 0)
	require.ErrorIs(t, err, ErrStepFailed)
	require.Equal(t, 2, result.To)
	require.Equal(t, []string{"one-a", "one-b", "two", "three"}, ran)
	v, _ := f.version(t)
	require.Equal(t, 2, v)

	ran = nil
	engine.WithSteps([]Step{step("two", 2, nil), step("three", 3, nil)})
	result, err = engine.Run(ctx, v)
	require.NoError(t, err)
	require.Equal(t, []string{"three"}, ran)
	require.Equal(t, 3, result.To)
}
