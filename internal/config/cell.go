package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"super-mouse-ai/internal/kvstore"
	"super-mouse-ai/internal/logging"
)

// ErrNotBound is returned by Save on a cell without a store.
var ErrNotBound = errors.New("config: cell has no store")

const defaultWriteTimeout = 5 * time.Second

// Cell is one named value mirrored to a key-value store.
//
// Set updates memory, notifies subscribers and returns; the durable write
// runs in the background.
type Cell[T any] struct {
	name     string
	def      T
	validate func(T) error

	mu     sync.RWMutex
	value  T
	subs   map[int]func(T)
	nextID int

	store        kvstore.Store
	logger       *zap.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex
	pending sync.WaitGroup
}

// NewCell returns a cell holding def. Storage is not touched.
func NewCell[T any](name string, def T) *Cell[T] {
	return &Cell[T]{
		name:         name,
		def:          def,
		value:        def,
		subs:         make(map[int]func(T)),
		logger:       zap.NewNop(),
		writeTimeout: defaultWriteTimeout,
	}
}

// Bind attaches the store used for writes.
func (c *Cell[T]) Bind(store kvstore.Store, logger *zap.Logger, writeTimeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
	c.logger = logging.OrNop(logger).With(zap.String("cell", c.name))
	if writeTimeout > 0 {
		c.writeTimeout = writeTimeout
	}
}

// Name returns the storage key.
func (c *Cell[T]) Name() string { return c.name }

// Default returns the fallback value.
func (c *Cell[T]) Default() T { return c.def }

// LoadFrom reads the cell from store and reports whether a stored value was
// applied. Failures are logged and leave the current value in place.
func (c *Cell[T]) LoadFrom(ctx context.Context, store kvstore.Store) bool {
	c.mu.Lock()
	if c.store == nil {
		c.store = store
	}
	logger := c.logger
	c.mu.Unlock()

	raw, ok, err := store.Get(ctx, c.name)
	if err != nil {
		logger.Warn("failed to load setting, keeping default", zap.Error(err))
		return false
	}
	if !ok {
		logging.Trace(logger, "setting absent, keeping default")
		return false
	}

	v, err := c.decode(raw)
	if err != nil {
		logger.Error("stored setting is malformed, keeping current value",
			zap.ByteString("raw", raw), zap.Error(err))
		return false
	}

	c.replace(v)
	logging.Trace(logger, "loaded setting")
	return true
}

func (c *Cell[T]) decode(raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, err
	}
	if c.validate != nil {
		if err := c.validate(v); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Get returns the in-memory value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set updates memory, notifies subscribers and schedules a durable write.
func (c *Cell[T]) Set(v T) {
	c.replace(v)

	c.mu.RLock()
	bound, logger, timeout := c.store != nil, c.logger, c.writeTimeout
	c.mu.RUnlock()
	if !bound {
		return
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.Save(ctx); err != nil {
			logger.Error("failed to persist setting", zap.Error(err))
		}
	}()
}

func (c *Cell[T]) replace(v T) {
	c.mu.Lock()
	c.value = v
	ids := slices.Sorted(maps.Keys(c.subs))
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers fn to run synchronously on every change.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Save writes the value current at the time the write runs.
func (c *Cell[T]) Save(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	store, v := c.store, c.value
	c.mu.RUnlock()
	if store == nil {
		return fmt.Errorf("save %s: %w", c.name, ErrNotBound)
	}

	if err := store.Set(ctx, c.name, v); err != nil {
		return fmt.Errorf("save %s: %w", c.name, err)
	}
	return nil
}

// Settle waits for background writes started by Set.
func (c *Cell[T]) Settle() {
	c.pending.Wait()
}

// Reset restores the default in memory without writing it.
func (c *Cell[T]) Reset() {
	c.replace(c.def)
}

// entry is the type-erased view the registry iterates over.
type entry interface {
	Name() string
	LoadFrom(ctx context.Context, store kvstore.Store) bool
	Bind(store kvstore.Store, logger *zap.Logger, writeTimeout time.Duration)
	Save(ctx context.Context) error
	Settle()
	Reset()
	anyValue() any
	setJSON(raw json.RawMessage) error
}

func (c *Cell[T]) anyValue() any { return c.Get() }

func (c *Cell[T]) setJSON(raw json.RawMessage) error {
	v, err := c.decode(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.name, err)
	}
	c.Set(v)
	return nil
}
