package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/kvstore"
	"super-mouse-ai/internal/models"
	"super-mouse-ai/internal/transcripts"
)

// Targets are the persisted-state locations to check.
type Targets struct {
	DataDir        string
	StorePath      string
	TranscriptPath string
	ModelsDir      string

	// Store is checked instead of opening StorePath when set.
	Store kvstore.Store
}

// Checker validates the persisted-state locations.
type Checker struct {
	stat       func(string) (os.FileInfo, error)
	readFile   func(string) ([]byte, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	openStore  func(string) (kvstore.Store, error)
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		stat:       os.Stat,
		readFile:   os.ReadFile,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		openStore: func(path string) (kvstore.Store, error) {
			return kvstore.Open(path)
		},
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, t Targets) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkDataDir(t.DataDir),
		c.checkStore(ctx, t.StorePath, t.Store),
		c.checkTranscriptFile(t.TranscriptPath),
		c.checkModelsDir(t.ModelsDir),
	}

	report := domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		Items:       items,
	}
	for _, item := range items {
		switch item.Status {
		case domain.DiagnosticStatusFail:
			report.HasFailures = true
		case domain.DiagnosticStatusWarn:
			report.HasWarnings = true
		}
	}
	return report
}

// checkDataDir validates data directory existence and write access.
func (c *Checker) checkDataDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "data_dir",
		Name: "Data directory",
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Data directory is empty."
		item.Hint = "Set data_dir in the options file."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create data directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Data directory is not writable: %s", dir)
		item.Hint = "Settings and transcripts cannot be saved until this directory is writable."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkStore verifies the settings database opens and can be enumerated.
func (c *Checker) checkStore(ctx context.Context, path string, store kvstore.Store) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "settings_store",
		Name: "Settings store",
	}

	if store == nil {
		if _, err := c.stat(path); errors.Is(err, fs.ErrNotExist) {
			item.Status = domain.DiagnosticStatusPass
			item.Message = "Settings store will be created on first start."
			return item
		}
		opened, err := c.openStore(path)
		if err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Cannot open settings store: %s", path)
			item.Hint = "Remove or restore the database file; settings fall back to defaults."
			return item
		}
		defer opened.Close()
		store = opened
	}

	entries, err := store.Entries(ctx)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read settings store: %v", err)
		item.Hint = "The database may be locked by another process or corrupted."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Settings store holds %d keys", len(entries))
	return item
}

// checkTranscriptFile validates the transcript file parses.
func (c *Checker) checkTranscriptFile(path string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "transcript_file",
		Name: "Transcript file",
	}

	data, err := c.readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			item.Status = domain.DiagnosticStatusPass
			item.Message = "Transcript file will be created on first load."
			return item
		}
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read transcript file: %s", path)
		item.Hint = "Check permissions for the transcript file."
		return item
	}

	records, err := transcripts.Decode(data)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Transcript file is malformed: %v", err)
		item.Hint = "It will be copied to a .corrupt file and replaced with an empty list on next start."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Transcript file holds %d records", len(records))
	return item
}

// checkModelsDir counts catalog models present in the models directory.
func (c *Checker) checkModelsDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "models_dir",
		Name: "Models directory",
	}

	entries, err := c.readDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read models directory: %s", dir)
		item.Hint = "Check permissions for the models directory."
		return item
	}

	found := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := models.ByFileName(entry.Name()); ok {
			found++
		}
	}

	if found == 0 {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("No catalog models found in %s", dir)
		item.Hint = "The bundled default model will be used until a model is downloaded."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found %d catalog models in %s", found, dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	stat func(string) (os.FileInfo, error),
	readFile func(string) ([]byte, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	openStore func(string) (kvstore.Store, error),
) *Checker {
	return &Checker{
		stat:       stat,
		readFile:   readFile,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		openStore:  openStore,
	}
}
