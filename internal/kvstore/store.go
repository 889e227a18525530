// Package kvstore persists named configuration values.
//
// Values are stored as JSON documents keyed by name. A present value is
// always distinguishable from an absent one, including JSON false, 0, "" and
// null.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: store is closed")

// Entry is one stored key and its raw JSON value.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ChangeFunc receives committed changes. Value is nil when the key was removed.
type ChangeFunc func(key string, value json.RawMessage)

// Store is a durable key-value store.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value any) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	OnChange(fn ChangeFunc) (unsubscribe func())
	Entries(ctx context.Context) ([]Entry, error)
	Reset(ctx context.Context) error
	Close() error
}

// GetAs reads key and decodes it into T.
func GetAs[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, true, fmt.Errorf("decode %q: %w", key, err)
	}
	return out, true, nil
}
