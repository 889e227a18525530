package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appDir = "super-mouse-ai"

// Options are process settings read from a YAML file. User-facing
// configuration lives in the key-value store instead.
type Options struct {
	DataDir          string        `yaml:"data_dir"`
	StoreFile        string        `yaml:"store_file"`
	TranscriptFile   string        `yaml:"transcript_file"`
	ModelsDir        string        `yaml:"models_dir"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	CellLoadTimeout  time.Duration `yaml:"cell_load_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	LogLevel         string        `yaml:"log_level"`
	LogFile          string        `yaml:"log_file,omitempty"`
	VRAMGB           float64       `yaml:"vram_gb,omitempty"`
}

// DefaultOptions returns baseline local options for first launch.
func DefaultOptions() Options {
	dataDir := filepath.Join(userDir("XDG_DATA_HOME", ".local", "share"), appDir)
	return Options{
		DataDir:          dataDir,
		StoreFile:        "settings.db",
		TranscriptFile:   "transcripts.json",
		ModelsDir:        filepath.Join(dataDir, "models"),
		AutosaveInterval: 2 * time.Second,
		CellLoadTimeout:  defaultCellLoadTimeout,
		WriteTimeout:     defaultWriteTimeout,
		LogLevel:         "info",
	}
}

// StorePath is the key-value store file.
func (o Options) StorePath() string {
	return filepath.Join(o.DataDir, o.StoreFile)
}

// LoadOptions reads options from path or returns defaults when missing.
// Fields absent from the file keep their defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return opts, nil
		}
		return Options{}, fmt.Errorf("read options: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse options %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// SaveOptions writes options as YAML and creates parent directories.
func SaveOptions(path string, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create options dir: %w", err)
	}

	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate rejects options the subsystem cannot start with.
func (o Options) Validate() error {
	switch {
	case strings.TrimSpace(o.DataDir) == "":
		return errors.New("options: data_dir is required")
	case strings.TrimSpace(o.StoreFile) == "":
		return errors.New("options: store_file is required")
	case strings.TrimSpace(o.TranscriptFile) == "":
		return errors.New("options: transcript_file is required")
	case o.CellLoadTimeout < 0 || o.WriteTimeout < 0:
		return errors.New("options: timeouts must not be negative")
	}
	return nil
}

// ResolveOptionsPath picks the explicit path, then XDG_CONFIG_HOME, then ~/.config.
func ResolveOptionsPath(explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return filepath.Join(userDir("XDG_CONFIG_HOME", ".config"), appDir, "options.yaml")
}

func userDir(env string, fallback ...string) string {
	if dir := strings.TrimSpace(os.Getenv(env)); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}
