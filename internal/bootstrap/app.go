package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"super-mouse-ai/internal/config"
	"super-mouse-ai/internal/diagnostics"
	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/events"
	"super-mouse-ai/internal/logging"
	"super-mouse-ai/internal/models"
	"super-mouse-ai/internal/state"
	"super-mouse-ai/internal/sysinfo"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ConfigChangedEvent is the runtime event name for store changes.
const ConfigChangedEvent = "config:changed"

const shutdownTimeout = 10 * time.Second

// ErrNoTranscript is returned when there is no current transcript.
var ErrNoTranscript = errors.New("no transcript selected")

// ModelView is a catalog entry as shown in the model picker.
type ModelView struct {
	domain.WhisperModelInfo
	Name        string `json:"name"`
	DisplaySize string `json:"displaySize"`
	URL         string `json:"url"`
	Downloaded  bool   `json:"downloaded"`
}

// App wires the settings registry, model watcher and UI runtime callbacks.
type App struct {
	Diagnostics domain.DiagnosticReport

	state   *state.Subsystem
	logs    logging.Runtime
	logger  *zap.Logger
	watcher *models.Watcher
	checker *diagnostics.Checker
	detect  func(vramGB float64) domain.SystemInfo
	emit    func(ctx context.Context, name string, data ...interface{})

	mu          sync.Mutex
	runtimeCtx  context.Context
	unsubscribe func()
	stopOnce    sync.Once
}

// New opens persisted state, loads it, starts watching the models directory
// and runs startup diagnostics.
func New(opts config.Options) (*App, error) {
	logs, err := logging.New(logging.Config{Level: opts.LogLevel, Path: opts.LogFile})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	sub, err := state.Open(opts, logs.Logger)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	a := &App{
		state:   sub,
		logs:    logs,
		logger:  logs.Logger.Named("app"),
		checker: diagnostics.NewChecker(),
		detect:  sysinfo.Detect,
		emit:    wailsruntime.EventsEmit,
	}

	ctx := context.Background()
	sub.Registry.Init(ctx)

	a.watcher = models.NewWatcher(opts.ModelsDir, a.syncDownloaded, logs.Logger)
	if err := a.watcher.Start(ctx); err != nil {
		a.logger.Warn("models directory is not watched", zap.String("dir", opts.ModelsDir), zap.Error(err))
	} else {
		a.syncDownloaded(a.watcher.Current())
	}

	a.Diagnostics = a.checker.Run(ctx, sub.Targets())
	a.logger.Info("app ready",
		zap.Bool("diagnosticFailures", a.Diagnostics.HasFailures),
		zap.Int("transcripts", sub.Registry.TranscriptCount()))
	return a, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	return wails.Run(&options.App{
		Title:  "Super Mouse AI",
		Width:  900,
		Height: 640,
		AssetServer: &assetserver.Options{
			Handler: http.FileServer(http.Dir("./frontend")),
		},
		OnStartup:  a.Startup,
		OnShutdown: a.Shutdown,
		Bind:       []interface{}{a},
	})
}

// Startup stores the Wails runtime context and forwards store changes to it.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
	if a.unsubscribe == nil {
		a.unsubscribe = a.state.Events.Subscribe(a.forward)
	}
}

// Shutdown saves everything and releases the store, watcher and log file.
func (a *App) Shutdown(ctx context.Context) {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		unsubscribe := a.unsubscribe
		a.unsubscribe = nil
		a.runtimeCtx = nil
		a.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}

		if a.watcher != nil {
			a.watcher.Stop()
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.state.Close(ctx); err != nil {
			a.logger.Error("shutdown did not save cleanly", zap.Error(err))
		}
		_ = a.logs.Close()
	})
}

func (a *App) forward(e events.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		a.emit(ctx, ConfigChangedEvent, e)
	}
}

func (a *App) syncDownloaded(names []string) {
	if !slices.Equal(names, a.state.Registry.DownloadedModels.Get()) {
		a.state.Registry.DownloadedModels.Set(names)
	}
}

// GetSettings returns every setting.
func (a *App) GetSettings() domain.Settings {
	return a.state.Registry.Snapshot()
}

// SetSetting decodes value as JSON into the named setting and returns the
// updated settings.
func (a *App) SetSetting(key, value string) (domain.Settings, error) {
	if !json.Valid([]byte(value)) {
		return domain.Settings{}, fmt.Errorf("value for %s is not valid JSON", key)
	}
	if err := a.state.Registry.SetJSON(key, json.RawMessage(value)); err != nil {
		return domain.Settings{}, err
	}
	return a.state.Registry.Snapshot(), nil
}

// ConfigEvents returns store changes with sequence greater than since.
func (a *App) ConfigEvents(since int64) []events.Event {
	return a.state.Events.Since(since)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reruns the persisted-state checks.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	report := a.checker.Run(context.Background(), a.state.Targets())
	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report
}

// Transcripts returns the transcript history, oldest first.
func (a *App) Transcripts() []domain.TranscriptRecord {
	return a.state.Registry.Transcripts().Records()
}

// CurrentTranscript returns the transcript at the current index.
func (a *App) CurrentTranscript() (domain.TranscriptRecord, error) {
	rec, ok := a.state.Registry.CurrentTranscript()
	if !ok {
		return domain.TranscriptRecord{}, ErrNoTranscript
	}
	return rec, nil
}

// AddTranscription appends a finished transcription to the history.
func (a *App) AddTranscription(rec domain.TranscriptRecord) int {
	a.state.Registry.AddTranscription(rec)
	return a.state.Registry.TranscriptCount()
}

// EditTranscription replaces the current transcript's text.
func (a *App) EditTranscription(text string) error {
	if !a.state.Registry.EditTranscription(text) {
		return ErrNoTranscript
	}
	return nil
}

// RemoveCurrentTranscription deletes the current transcript.
func (a *App) RemoveCurrentTranscription() error {
	if !a.state.Registry.RemoveCurrentTranscription() {
		return ErrNoTranscript
	}
	return nil
}

// PrevTranscription moves to the previous transcript and reports whether it moved.
func (a *App) PrevTranscription() bool {
	return a.state.Registry.PrevIndex()
}

// NextTranscription moves to the next transcript and reports whether it moved.
func (a *App) NextTranscription() bool {
	return a.state.Registry.NextIndex()
}

// RecommendModel returns the largest catalog model this machine can run.
func (a *App) RecommendModel(usesCPU bool) (ModelView, error) {
	opts := models.DefaultFinderOptions()
	opts.UsesCPU = usesCPU
	sys := a.detect(a.state.Options.VRAMGB)

	m, ok := models.FindLargestUsableModel(sys, opts)
	if !ok {
		return ModelView{}, fmt.Errorf("no model fits %.0f cores, %.1f GB RAM, %.1f GB VRAM",
			sys.CPUCoreCount, sys.TotalMemoryGB, sys.TotalVRAMGB)
	}
	return a.view(m, a.state.Registry.DownloadedModels.Get()), nil
}

// WhisperModels lists the catalog with download state.
func (a *App) WhisperModels() []ModelView {
	downloaded := a.state.Registry.DownloadedModels.Get()
	return lo.Map(models.Catalog(), func(m domain.WhisperModelInfo, _ int) ModelView {
		return a.view(m, downloaded)
	})
}

func (a *App) view(m domain.WhisperModelInfo, downloaded []string) ModelView {
	return ModelView{
		WhisperModelInfo: m,
		Name:             models.Name(m),
		DisplaySize:      models.HumanSize(m.ApproxSize),
		URL:              models.DownloadURL(m),
		Downloaded:       slices.Contains(downloaded, m.RelativePath),
	}
}
