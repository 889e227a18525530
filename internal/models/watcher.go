package models

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"super-mouse-ai/internal/logging"
)

// DefaultDebounce coalesces bursts of events such as a download in progress.
const DefaultDebounce = 250 * time.Millisecond

// Watcher rescans a models directory whenever its contents change.
type Watcher struct {
	dir      string
	onChange func([]string)
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	last    []string
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher returns a watcher for dir. onChange receives the downloaded
// file names after every settled change that alters the list.
func NewWatcher(dir string, onChange func([]string), logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		onChange: onChange,
		logger:   logging.OrNop(logger).Named("models"),
		debounce: DefaultDebounce,
	}
}

// SetDebounce overrides the quiet period before a rescan.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start creates the directory if needed, scans it once and begins watching.
// It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}

	names, err := Downloaded(w.dir)
	if err != nil {
		w.logger.Warn("initial model scan failed", zap.Error(err))
	}
	w.last = names

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx, fw, w.stopCh, w.doneCh, w.debounce)

	w.logger.Debug("watching models directory", zap.String("dir", w.dir), zap.Int("models", len(names)))
	return nil
}

// Current returns the list from the latest scan.
func (w *Watcher) Current() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.last)
}

// Stop ends watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fw := w.stopCh, w.doneCh, w.watcher
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fw.Close(); err != nil {
		w.logger.Warn("failed to close models watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, stopCh, doneCh chan struct{}, debounce time.Duration) {
	defer close(doneCh)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			logging.Trace(w.logger, "models dir event", zap.String("file", filepath.Base(event.Name)), zap.String("op", event.Op.String()))
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("models watcher error", zap.Error(err))
		case <-timer.C:
			w.rescan()
		}
	}
}

func (w *Watcher) rescan() {
	names, err := Downloaded(w.dir)
	if err != nil {
		w.logger.Warn("model rescan failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	changed := !slices.Equal(names, w.last)
	w.last = names
	w.mu.Unlock()

	if changed {
		w.logger.Info("downloaded models changed", zap.Strings("models", names))
		if w.onChange != nil {
			w.onChange(slices.Clone(names))
		}
	}
}
