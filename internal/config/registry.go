// Package config owns the persisted configuration cells and the runtime
// options file.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/events"
	"super-mouse-ai/internal/kvstore"
	"super-mouse-ai/internal/logging"
	"super-mouse-ai/internal/migrate"
	"super-mouse-ai/internal/transcripts"
)

// ErrUnknownKey is returned for names that are not registry cells.
var ErrUnknownKey = errors.New("config: unknown key")

// ErrNotLoaded is returned by operations that need the initial load.
var ErrNotLoaded = errors.New("config: registry not loaded")

const defaultCellLoadTimeout = 5 * time.Second

// TranscriptsName labels the transcript log in SaveAll results.
const TranscriptsName = "transcripts"

// Cell keys as stored in the key-value store.
const (
	KeyTheme              = "theme"
	KeyShortcut           = "shortcut"
	KeyThreads            = "threads"
	KeyIgnoredWords       = "ignoredWords"
	KeyInitialPrompt      = "initialPrompt"
	KeyLanguage           = "language"
	KeyTranslate          = "translate"
	KeyEnableSound        = "enableSound"
	KeyEnableNotification = "enableNotification"
	KeyModel              = "model"
	KeyDownloadedModels   = "downloadedModels"
	KeyUseGPU             = "useGPU"
	KeyPatience           = "patience"
	KeyNormalizeAudio     = "normalizeAudio"
	KeyDenoiseAudio       = "denoiseAudio"
	KeyLowPass            = "lowPass"
	KeyHighPass           = "highPass"
	KeyWindowOnTop        = "windowOnTop"
	KeyIndex              = "index"
)

// Migrator upgrades a stale store.
type Migrator interface {
	Run(ctx context.Context, from int) (migrate.Result, error)
}

// SaveResult is the outcome of one flush in SaveAll.
type SaveResult struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logging.OrNop(logger).Named("config") }
}

// WithMigrator replaces the default migration engine.
func WithMigrator(m Migrator) Option {
	return func(r *Registry) { r.migrator = m }
}

// WithCellLoadTimeout bounds each cell load in LoadAll.
func WithCellLoadTimeout(d time.Duration) Option {
	return func(r *Registry) { r.cellLoadTimeout = d }
}

// WithWriteTimeout bounds each background cell write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Registry) { r.writeTimeout = d }
}

// WithEvents publishes every store change to bus.
func WithEvents(bus *events.Bus) Option {
	return func(r *Registry) { r.events = bus }
}

// Registry holds every configuration cell and the transcript log.
type Registry struct {
	store    kvstore.Store
	log      *transcripts.Log
	logger   *zap.Logger
	migrator Migrator
	events   *events.Bus

	cellLoadTimeout time.Duration
	writeTimeout    time.Duration

	Theme              *Cell[domain.Theme]
	Shortcut           *Cell[string]
	Threads            *Cell[int]
	IgnoredWords       *Cell[string]
	InitialPrompt      *Cell[string]
	Language           *Cell[string]
	Translate          *Cell[bool]
	EnableSound        *Cell[bool]
	EnableNotification *Cell[bool]
	Model              *Cell[string]
	DownloadedModels   *Cell[[]string]
	UseGPU             *Cell[bool]
	Patience           *Cell[float64]
	NormalizeAudio     *Cell[bool]
	DenoiseAudio       *Cell[bool]
	LowPass            *Cell[int]
	HighPass           *Cell[int]
	WindowOnTop        *Cell[bool]
	Index              *Cell[int]

	cells  []entry
	byName map[string]entry

	// mutMu serialises transcript mutations with their index updates.
	mutMu sync.Mutex
	saves sync.WaitGroup

	initOnce    sync.Once
	ready       chan struct{}
	readyOnce   sync.Once
	loaded      atomic.Bool
	unsubscribe func()
	disposeOnce sync.Once
}

// New builds every cell with its default and binds it to store.
func New(store kvstore.Store, log *transcripts.Log, opts ...Option) *Registry {
	def := domain.DefaultSettings()
	r := &Registry{
		store:           store,
		log:             log,
		logger:          zap.NewNop(),
		cellLoadTimeout: defaultCellLoadTimeout,
		writeTimeout:    defaultWriteTimeout,
		ready:           make(chan struct{}),

		Theme:              NewCell(KeyTheme, def.Theme),
		Shortcut:           NewCell(KeyShortcut, def.Shortcut),
		Threads:            NewCell(KeyThreads, def.Threads),
		IgnoredWords:       NewCell(KeyIgnoredWords, def.IgnoredWords),
		InitialPrompt:      NewCell(KeyInitialPrompt, def.InitialPrompt),
		Language:           NewCell(KeyLanguage, def.Language),
		Translate:          NewCell(KeyTranslate, def.Translate),
		EnableSound:        NewCell(KeyEnableSound, def.EnableSound),
		EnableNotification: NewCell(KeyEnableNotification, def.EnableNotification),
		Model:              NewCell(KeyModel, def.Model),
		DownloadedModels:   NewCell(KeyDownloadedModels, def.DownloadedModels),
		UseGPU:             NewCell(KeyUseGPU, def.UseGPU),
		Patience:           NewCell(KeyPatience, def.Patience),
		NormalizeAudio:     NewCell(KeyNormalizeAudio, def.NormalizeAudio),
		DenoiseAudio:       NewCell(KeyDenoiseAudio, def.DenoiseAudio),
		LowPass:            NewCell(KeyLowPass, def.LowPass),
		HighPass:           NewCell(KeyHighPass, def.HighPass),
		WindowOnTop:        NewCell(KeyWindowOnTop, def.WindowOnTop),
		Index:              NewCell(KeyIndex, def.CurrentIndex),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.migrator == nil {
		r.migrator = migrate.New(store, log, r.logger)
	}

	r.Theme.validate = func(t domain.Theme) error {
		if !t.Valid() {
			return fmt.Errorf("unknown theme %q", t)
		}
		return nil
	}
	r.Threads.validate = nonNegative[int]("threads")
	r.Index.validate = nonNegative[int]("index")
	r.Patience.validate = nonNegative[float64]("patience")

	r.cells = []entry{
		r.Theme, r.Shortcut, r.Threads, r.IgnoredWords, r.InitialPrompt,
		r.Language, r.Translate, r.EnableSound, r.EnableNotification,
		r.Model, r.DownloadedModels, r.UseGPU, r.Patience,
		r.NormalizeAudio, r.DenoiseAudio, r.LowPass, r.HighPass,
		r.WindowOnTop, r.Index,
	}
	r.byName = make(map[string]entry, len(r.cells))
	for _, c := range r.cells {
		c.Bind(store, r.logger, r.writeTimeout)
		r.byName[c.Name()] = c
	}

	r.unsubscribe = store.OnChange(r.onStoreChange)
	return r
}

func nonNegative[T int | float64](what string) func(T) error {
	return func(v T) error {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", what, v)
		}
		return nil
	}
}

func (r *Registry) onStoreChange(key string, value json.RawMessage) {
	logging.Trace(r.logger, "store changed", zap.String("key", key))
	if r.events != nil {
		r.events.Publish(events.Change(key, value))
	}
}

// Transcripts returns the transcript log.
func (r *Registry) Transcripts() *transcripts.Log {
	return r.log
}

// Init loads everything once. Concurrent and later calls wait for the first.
func (r *Registry) Init(ctx context.Context) {
	r.initOnce.Do(func() { r.LoadAll(ctx) })
}

// LoadAll reads the version marker, loads every cell concurrently, migrates a
// stale store, loads the transcript log and marks the registry ready. It is
// fail-soft: problems are logged and defaults stay in place.
func (r *Registry) LoadAll(ctx context.Context) {
	start := time.Now()

	from, stale := r.readVersion(ctx)

	var g errgroup.Group
	var found atomic.Int32
	for _, c := range r.cells {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, r.cellLoadTimeout)
			defer cancel()
			if c.LoadFrom(cctx, r.store) {
				found.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if stale {
		if _, err := r.migrator.Run(ctx, from); err != nil {
			r.logger.Error("migration failed, will retry on next start", zap.Int("from", from), zap.Error(err))
		}
	}

	if !r.log.Loaded() {
		if err := r.log.Load(); err != nil {
			r.logger.Error("failed to load transcripts", zap.Error(err))
		}
	}

	r.mutMu.Lock()
	r.clampIndex()
	r.mutMu.Unlock()

	r.markReady()
	r.logger.Info("settings loaded",
		zap.Int("stored", int(found.Load())),
		zap.Int("cells", len(r.cells)),
		zap.Int("transcripts", r.log.Len()),
		zap.Duration("duration", time.Since(start)))
}

func (r *Registry) readVersion(ctx context.Context) (int, bool) {
	v, ok, err := migrate.ReadVersion(ctx, r.store)
	switch {
	case err != nil:
		r.logger.Warn("failed to read schema version, assuming unversioned", zap.Error(err))
		return 0, true
	case !ok:
		r.logger.Debug("store is unversioned")
		return 0, true
	case v < migrate.CurrentVersion:
		r.logger.Debug("store is stale", zap.Int("version", v))
		return v, true
	default:
		return v, false
	}
}

func (r *Registry) markReady() {
	r.readyOnce.Do(func() {
		r.loaded.Store(true)
		close(r.ready)
	})
}

// WaitUntilLoaded blocks until the initial load finished or ctx ends.
func (r *Registry) WaitUntilLoaded(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether the initial load finished.
func (r *Registry) Loaded() bool {
	return r.loaded.Load()
}

// SaveAll flushes the transcript log and every cell. It never stops early.
// Before the initial load every result is ErrNotLoaded and nothing is written.
func (r *Registry) SaveAll(ctx context.Context) []SaveResult {
	results := make([]SaveResult, len(r.cells)+1)
	if !r.Loaded() {
		results[0] = SaveResult{Name: TranscriptsName, Err: ErrNotLoaded}
		for i, c := range r.cells {
			results[i+1] = SaveResult{Name: c.Name(), Err: ErrNotLoaded}
		}
		r.logger.Warn("refusing to save before settings are loaded")
		return results
	}

	results[0] = SaveResult{Name: TranscriptsName, Err: r.log.Flush()}

	var g errgroup.Group
	for i, c := range r.cells {
		g.Go(func() error {
			results[i+1] = SaveResult{Name: c.Name(), Err: c.Save(ctx)}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			r.logger.Error("save failed", zap.String("name", res.Name), zap.Error(res.Err))
		}
	}
	return results
}

// ClearData drops every persisted key. In-memory values are untouched.
func (r *Registry) ClearData(ctx context.Context) error {
	r.settle()
	if err := r.store.Reset(ctx); err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	r.logger.Warn("cleared all persisted settings")
	return nil
}

// ResetToDefaults restores every cell's default in memory.
func (r *Registry) ResetToDefaults() {
	for _, c := range r.cells {
		c.Reset()
	}
}

// Keys returns every cell name in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.cells))
	for _, c := range r.cells {
		keys = append(keys, c.Name())
	}
	return keys
}

// Value returns the in-memory value of key.
func (r *Registry) Value(key string) (any, error) {
	c, ok := r.byName[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return c.anyValue(), nil
}

// SetJSON decodes raw into key's cell and sets it. Memory is untouched on failure.
func (r *Registry) SetJSON(key string, raw json.RawMessage) error {
	c, ok := r.byName[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if key == KeyIndex {
		var i int
		if err := json.Unmarshal(raw, &i); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if !r.SetCurrentIndex(i) {
			return fmt.Errorf("index %d out of range for %d transcripts", i, r.log.Len())
		}
		return nil
	}
	return c.setJSON(raw)
}

// Snapshot returns every cell value.
func (r *Registry) Snapshot() domain.Settings {
	return domain.Settings{
		Theme:              r.Theme.Get(),
		Shortcut:           r.Shortcut.Get(),
		Threads:            r.Threads.Get(),
		IgnoredWords:       r.IgnoredWords.Get(),
		InitialPrompt:      r.InitialPrompt.Get(),
		Language:           r.Language.Get(),
		Translate:          r.Translate.Get(),
		EnableSound:        r.EnableSound.Get(),
		EnableNotification: r.EnableNotification.Get(),
		Model:              r.Model.Get(),
		DownloadedModels:   slices.Clone(r.DownloadedModels.Get()),
		UseGPU:             r.UseGPU.Get(),
		Patience:           r.Patience.Get(),
		NormalizeAudio:     r.NormalizeAudio.Get(),
		DenoiseAudio:       r.DenoiseAudio.Get(),
		LowPass:            r.LowPass.Get(),
		HighPass:           r.HighPass.Get(),
		WindowOnTop:        r.WindowOnTop.Get(),
		CurrentIndex:       r.Index.Get(),
	}
}

// Version returns the stored schema version.
func (r *Registry) Version(ctx context.Context) (int, bool) {
	v, ok, err := migrate.ReadVersion(ctx, r.store)
	if err != nil {
		r.logger.Warn("failed to read schema version", zap.Error(err))
		return 0, false
	}
	return v, ok
}

// Dispose unsubscribes from the store, stops autosave and waits for
// background writes.
func (r *Registry) Dispose() {
	r.disposeOnce.Do(func() {
		r.unsubscribe()
		r.log.CleanUp()
		r.settle()
	})
}

func (r *Registry) settle() {
	r.saves.Wait()
	for _, c := range r.cells {
		c.Settle()
	}
}
