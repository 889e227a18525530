// Package migrate upgrades the persisted layout to the current schema.
//
// Schema versions:
// v0: unversioned store, transcripts kept as a flat string list under "transcripts"
// v1: transcripts moved to their own file as records, telemetry consent dropped
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/kvstore"
	"super-mouse-ai/internal/logging"
)

// CurrentVersion is the schema version this build writes.
const CurrentVersion = 1

const (
	VersionKey           = "version"
	LegacyTranscriptsKey = "transcripts"
	TelemetryConsentKey  = "telemetryConsent"
)

// LegacyProvider tags transcripts recovered from the flat legacy list.
const LegacyProvider = domain.ProviderLocal

// ErrStepFailed wraps the error of the step that stopped a run.
var ErrStepFailed = errors.New("migration step failed")

// TranscriptLog is the part of the transcript log migrations touch.
type TranscriptLog interface {
	Loaded() bool
	Load() error
	Records() []domain.TranscriptRecord
	Append(records ...domain.TranscriptRecord) int
	Flush() error
}

// Result holds the outcome of a run.
type Result struct {
	From     int
	To       int
	Applied  []string
	Skipped  []string
	Duration time.Duration
}

// Step is one migration action. Apply reports false when there was nothing to do.
type Step struct {
	Name    string
	Version int
	Apply   func(ctx context.Context, e *Engine) (bool, error)
}

// Engine runs the step chain against a store and transcript log.
type Engine struct {
	store  kvstore.Store
	log    TranscriptLog
	logger *zap.Logger
	steps  []Step
}

// New builds an engine with the built-in step chain.
func New(store kvstore.Store, log TranscriptLog, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		log:    log,
		logger: logging.OrNop(logger).Named("migrate"),
		steps:  DefaultSteps(),
	}
}

// DefaultSteps returns the chain ordered by target version.
func DefaultSteps() []Step {
	return []Step{
		{Name: "legacy-transcripts", Version: 1, Apply: migrateLegacyTranscripts},
		{Name: "reload-transcripts", Version: 1, Apply: reloadTranscripts},
		{Name: "drop-telemetry-consent", Version: 1, Apply: dropTelemetryConsent},
	}
}

// WithSteps replaces the step chain. Steps must be ordered by Version.
func (e *Engine) WithSteps(steps []Step) *Engine {
	e.steps = steps
	return e
}

// ReadVersion returns the stored version, or 0 when the store is unversioned.
func ReadVersion(ctx context.Context, store kvstore.Store) (int, bool, error) {
	return kvstore.GetAs[int](ctx, store, VersionKey)
}

// Run applies every step newer than from. The version key is written after
// the last step of each version, so a failure leaves it at the last
// completed version.
func (e *Engine) Run(ctx context.Context, from int) (Result, error) {
	start := time.Now()
	result := Result{From: from, To: from}

	pending := lo.Filter(e.steps, func(s Step, _ int) bool { return s.Version > from })
	if len(pending) == 0 {
		e.logger.Debug("schema is current", zap.Int("version", from))
		result.Duration = time.Since(start)
		return result, nil
	}

	e.logger.Info("migrating persisted state", zap.Int("from", from), zap.Int("steps", len(pending)))

	for i, step := range pending {
		logging.Trace(e.logger, "running migration step", zap.String("step", step.Name), zap.Int("version", step.Version))

		applied, err := step.Apply(ctx, e)
		if err != nil {
			e.logger.Error("migration step failed", zap.String("step", step.Name), zap.Error(err))
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%w: %s: %w", ErrStepFailed, step.Name, err)
		}
		if applied {
			result.Applied = append(result.Applied, step.Name)
		} else {
			result.Skipped = append(result.Skipped, step.Name)
		}

		lastOfVersion := i == len(pending)-1 || pending[i+1].Version != step.Version
		if !lastOfVersion {
			continue
		}
		if err := e.store.Set(ctx, VersionKey, step.Version); err != nil {
			e.logger.Error("failed to write schema version", zap.Int("version", step.Version), zap.Error(err))
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%w: write version %d: %w", ErrStepFailed, step.Version, err)
		}
		result.To = step.Version
	}

	result.Duration = time.Since(start)
	e.logger.Info("migration complete",
		zap.Int("from", result.From), zap.Int("to", result.To),
		zap.Strings("applied", result.Applied), zap.Duration("duration", result.Duration))
	return result, nil
}

func migrateLegacyTranscripts(ctx context.Context, e *Engine) (bool, error) {
	legacy, ok, err := kvstore.GetAs[[]string](ctx, e.store, LegacyTranscriptsKey)
	if err != nil {
		return false, fmt.Errorf("read legacy transcripts: %w", err)
	}
	if !ok {
		return false, nil
	}

	if !e.log.Loaded() {
		if err := e.log.Load(); err != nil {
			return false, err
		}
	}

	fresh := unmigrated(legacy, e.log.Records())
	records := lo.Map(fresh, func(text string, _ int) domain.TranscriptRecord {
		return domain.TranscriptRecord{Text: text, Provider: LegacyProvider}
	})
	e.log.Append(records...)

	if err := e.log.Flush(); err != nil {
		return false, fmt.Errorf("save migrated transcripts: %w", err)
	}
	if err := e.store.Delete(ctx, LegacyTranscriptsKey); err != nil {
		return false, fmt.Errorf("delete legacy transcripts: %w", err)
	}

	e.logger.Info("moved legacy transcripts",
		zap.Int("legacy", len(legacy)), zap.Int("appended", len(records)))
	return true, nil
}

// unmigrated drops legacy strings that already have a migrated record,
// counting duplicates so repeated transcripts survive.
func unmigrated(legacy []string, existing []domain.TranscriptRecord) []string {
	seen := lo.CountValuesBy(
		lo.Filter(existing, func(r domain.TranscriptRecord, _ int) bool {
			return r.Provider == LegacyProvider && r.Model == ""
		}),
		func(r domain.TranscriptRecord) string { return r.Text },
	)

	out := make([]string, 0, len(legacy))
	for _, text := range legacy {
		if seen[text] > 0 {
			seen[text]--
			continue
		}
		out = append(out, text)
	}
	return out
}

func reloadTranscripts(_ context.Context, e *Engine) (bool, error) {
	if err := e.log.Load(); err != nil {
		return false, err
	}
	return true, nil
}

func dropTelemetryConsent(ctx context.Context, e *Engine) (bool, error) {
	has, err := e.store.Has(ctx, TelemetryConsentKey)
	if err != nil {
		return false, fmt.Errorf("check telemetry consent: %w", err)
	}
	if !has {
		return false, nil
	}
	if err := e.store.Delete(ctx, TelemetryConsentKey); err != nil {
		return false, fmt.Errorf("delete telemetry consent: %w", err)
	}
	return true, nil
}
