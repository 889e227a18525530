// Package state opens the persisted-state subsystem described by runtime
// options and tears it down again.
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"super-mouse-ai/internal/config"
	"super-mouse-ai/internal/diagnostics"
	"super-mouse-ai/internal/events"
	"super-mouse-ai/internal/filestore"
	"super-mouse-ai/internal/kvstore"
	"super-mouse-ai/internal/logging"
	"super-mouse-ai/internal/transcripts"
)

const eventHistory = 1000

// Subsystem is an opened store, transcript log and registry.
type Subsystem struct {
	Options  config.Options
	Store    *kvstore.SQLiteStore
	Files    *filestore.OSFS
	Registry *config.Registry
	Events   *events.Bus

	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// Open opens the store under opts.DataDir and builds the registry. It does
// not load anything; call Init on the registry.
func Open(opts config.Options, logger *zap.Logger) (*Subsystem, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)

	store, err := kvstore.Open(opts.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	files := filestore.NewOS(opts.DataDir)
	log := transcripts.New(files, opts.TranscriptFile,
		transcripts.WithLogger(logger),
		transcripts.WithAutosaveInterval(opts.AutosaveInterval))

	bus := events.NewBus(eventHistory)
	reg := config.New(store, log,
		config.WithLogger(logger),
		config.WithEvents(bus),
		config.WithCellLoadTimeout(opts.CellLoadTimeout),
		config.WithWriteTimeout(opts.WriteTimeout))

	logger.Debug("state opened",
		zap.String("store", opts.StorePath()),
		zap.String("transcripts", filepath.Join(opts.DataDir, opts.TranscriptFile)))

	return &Subsystem{
		Options:  opts,
		Store:    store,
		Files:    files,
		Registry: reg,
		Events:   bus,
		logger:   logger,
	}, nil
}

// Targets returns the locations diagnostics should inspect.
func (s *Subsystem) Targets() diagnostics.Targets {
	return diagnostics.Targets{
		DataDir:        s.Options.DataDir,
		StorePath:      s.Options.StorePath(),
		TranscriptPath: filepath.Join(s.Options.DataDir, s.Options.TranscriptFile),
		ModelsDir:      s.Options.ModelsDir,
		Store:          s.Store,
	}
}

// Close saves everything, then releases. Save failures are combined into
// the returned error. Later calls return the first result.
func (s *Subsystem) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var err error
		if s.Registry.Loaded() {
			for _, res := range s.Registry.SaveAll(ctx) {
				if res.Err != nil {
					err = multierr.Append(err, fmt.Errorf("save %s: %w", res.Name, res.Err))
				}
			}
		}
		s.closeErr = multierr.Append(err, s.release())
	})
	return s.closeErr
}

// Release disposes the registry and closes the store without saving.
func (s *Subsystem) Release() error {
	s.closeOnce.Do(func() { s.closeErr = s.release() })
	return s.closeErr
}

func (s *Subsystem) release() error {
	s.Registry.Dispose()
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	s.logger.Debug("state closed")
	return nil
}
