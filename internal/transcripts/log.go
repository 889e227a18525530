// Package transcripts keeps the transcript history in a single JSON file.
//
// The list lives in memory and is written back on demand and by a periodic
// autosave. Reading is fail-soft: malformed content is logged, copied aside
// and replaced with an empty list.
package transcripts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"super-mouse-ai/internal/domain"
	"super-mouse-ai/internal/filestore"
	"super-mouse-ai/internal/logging"
)

// DefaultAutosaveInterval is how often unsaved changes are flushed.
const DefaultAutosaveInterval = 2 * time.Second

// ErrNotLoaded is returned by Flush before the file has been read once.
var ErrNotLoaded = errors.New("transcripts: log not loaded")

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) { l.logger = logging.OrNop(logger).Named("transcripts") }
}

// WithAutosaveInterval overrides the autosave period. Zero or less disables autosave.
func WithAutosaveInterval(d time.Duration) Option {
	return func(l *Log) { l.interval = d }
}

// Log is the ordered transcript history.
type Log struct {
	fs       filestore.FS
	name     string
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	records  []domain.TranscriptRecord
	loaded   bool
	gen      uint64
	savedGen uint64

	writeMu sync.Mutex

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a log stored as name in fsys and starts autosave.
func New(fsys filestore.FS, name string, opts ...Option) *Log {
	l := &Log{
		fs:       fsys,
		name:     name,
		logger:   zap.NewNop().Named("transcripts"),
		interval: DefaultAutosaveInterval,
		records:  []domain.TranscriptRecord{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.interval > 0 {
		go l.autosave()
	} else {
		close(l.done)
	}
	return l
}

// Name returns the backing file name.
func (l *Log) Name() string {
	return l.name
}

// Load reads the backing file, creating it when absent. Malformed content
// yields an empty list; only I/O failures are returned.
func (l *Log) Load() error {
	data, err := l.read()
	if err != nil {
		l.logger.Error("failed to read transcript file", zap.String("file", l.name), zap.Error(err))
		return fmt.Errorf("load transcripts: %w", err)
	}

	records, err := Decode(data)
	if err != nil {
		l.logger.Error("transcript file is malformed, starting empty",
			zap.String("file", l.name), zap.Int("bytes", len(data)), zap.Error(err))
		l.backupCorrupt(data)
		records = []domain.TranscriptRecord{}
	}

	l.mu.Lock()
	l.records = records
	l.loaded = true
	l.savedGen = l.gen
	l.mu.Unlock()

	l.logger.Debug("loaded transcripts", zap.Int("count", len(records)))
	return nil
}

func (l *Log) read() ([]byte, error) {
	f, err := l.fs.Open(l.name, filestore.Flag{Read: true, Write: true, Create: true})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", l.name, err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, info.Size))
	if _, err := io.Copy(buf, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", l.name, err)
	}
	return buf.Bytes(), nil
}

func (l *Log) backupCorrupt(data []byte) {
	name := l.name + ".corrupt"
	if err := l.write(name, data); err != nil {
		l.logger.Warn("failed to back up malformed transcript file", zap.String("file", name), zap.Error(err))
		return
	}
	l.logger.Info("backed up malformed transcript file", zap.String("file", name))
}

// Decode parses a transcript file body. Blank content is an empty list.
func Decode(data []byte) ([]domain.TranscriptRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.TranscriptRecord{}, nil
	}
	var records []domain.TranscriptRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.TranscriptRecord{}
	}
	return records, nil
}

// Save writes the current list and reports success. Failures are logged.
func (l *Log) Save() bool {
	err := l.Flush()
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotLoaded):
		l.logger.Debug("skipping save before first load")
	default:
		l.logger.Error("failed to save transcripts", zap.String("file", l.name), zap.Error(err))
	}
	return false
}

// Flush writes the current list and returns any failure.
func (l *Log) Flush() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	if !l.loaded {
		l.mu.Unlock()
		return ErrNotLoaded
	}
	snapshot := append([]domain.TranscriptRecord{}, l.records...)
	gen := l.gen
	l.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode transcripts: %w", err)
	}
	if err := l.write(l.name, data); err != nil {
		return err
	}

	l.mu.Lock()
	if gen > l.savedGen {
		l.savedGen = gen
	}
	l.mu.Unlock()

	logging.Trace(l.logger, "saved transcripts", zap.Int("count", len(snapshot)))
	return nil
}

func (l *Log) write(name string, data []byte) error {
	f, err := l.fs.Open(name, filestore.Flag{Write: true, Create: true, Truncate: true})
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

func (l *Log) autosave() {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if l.Dirty() {
				l.Save()
			}
		}
	}
}

// CleanUp stops autosave and waits for it to exit. It does not save.
func (l *Log) CleanUp() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// Loaded reports whether the file has been read at least once.
func (l *Log) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Dirty reports whether the list changed since the last successful save.
func (l *Log) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded && l.gen != l.savedGen
}

// Records returns a copy of the list.
func (l *Log) Records() []domain.TranscriptRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.TranscriptRecord{}, l.records...)
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// At returns the record at i.
func (l *Log) At(i int) (domain.TranscriptRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.records) {
		return domain.TranscriptRecord{}, false
	}
	return l.records[i], true
}

// Append adds records to the end and returns the new length. A strategy
// that is neither greedy nor beam, or both, is dropped so the list stays
// encodable.
func (l *Log) Append(records ...domain.TranscriptRecord) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range records {
		if rec.Strategy != nil {
			if err := rec.Strategy.Validate(); err != nil {
				l.logger.Warn("dropping invalid strategy from transcript", zap.Int("index", len(l.records)), zap.Error(err))
				rec.Strategy = nil
			}
		}
		l.records = append(l.records, rec)
	}
	if len(records) > 0 {
		l.gen++
	}
	return len(l.records)
}

// SetText replaces the text of the record at i.
func (l *Log) SetText(i int, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.records) {
		return false
	}
	l.records[i].Text = text
	l.gen++
	return true
}

// RemoveAt deletes the record at i and returns the new length.
func (l *Log) RemoveAt(i int) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.records) {
		return len(l.records), false
	}
	l.records = append(l.records[:i], l.records[i+1:]...)
	l.gen++
	return len(l.records), true
}

// Adopt replaces the list wholesale and marks the log loaded.
func (l *Log) Adopt(records []domain.TranscriptRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append([]domain.TranscriptRecord{}, records...)
	l.loaded = true
	l.gen++
}
