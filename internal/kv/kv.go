// Package kv persists opaque JSON documents under string keys. Every entry
// carries a version; writers name the version they read and lose with
// ErrVersionConflict when someone else committed first.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KeyTabList          = "tabList"
	KeyRecycleBin       = "recycleBin"
	KeySettings         = "settings"
	KeySyncConfig       = "syncConfig"
	KeySyncResult       = "syncResult"
	KeySyncStatus       = "syncStatus"
	KeyWebDAVConfig     = "syncWevDAVConfig"
	KeyWebDAVSyncResult = "syncWebDAVResult"
	KeyWebDAVSyncStatus = "syncWebDAVStatus"
)

var ErrVersionConflict = errors.New("version conflict")

// ConflictError reports the version a writer expected and the one it found.
type ConflictError struct {
	Key      string
	Expected int64
	Current  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s expected version %d, found %d", ErrVersionConflict, e.Key, e.Expected, e.Current)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// Entry is a stored value. A missing key reads as the zero Entry.
type Entry struct {
	Value   []byte
	Version int64
}

type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	// Put writes value when the stored version equals baseVersion and
	// returns the new version.
	Put(ctx context.Context, key string, value []byte, baseVersion int64) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

const maxUpdateAttempts = 8

// GetJSON decodes key into out. A missing key leaves out untouched and
// returns version 0.
func GetJSON(ctx context.Context, s Store, key string, out any) (int64, error) {
	entry, err := s.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	if len(entry.Value) == 0 {
		return entry.Version, nil
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return entry.Version, nil
}

func PutJSON(ctx context.Context, s Store, key string, value any, baseVersion int64) (int64, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}
	version, err := s.Put(ctx, key, data, baseVersion)
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	return version, nil
}

// UpdateJSON runs a read-modify-write cycle on key. fn receives a freshly
// decoded value on every attempt; a version conflict reloads and retries.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(*T) error) (T, error) {
	var zero T
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var value T
		version, err := GetJSON(ctx, s, key, &value)
		if err != nil {
			return zero, err
		}
		if err := fn(&value); err != nil {
			return zero, err
		}
		_, err = PutJSON(ctx, s, key, value, version)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("update %s: %w after %d attempts", key, ErrVersionConflict, maxUpdateAttempts)
}

// Namespace prefixes every key of s with ns and a colon.
func Namespace(s Store, ns string) Store {
	if ns == "" {
		return s
	}
	return &namespaced{Store: s, prefix: ns + ":"}
}

type namespaced struct {
	Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) (Entry, error) {
	return n.Store.Get(ctx, n.prefix+key)
}

func (n *namespaced) Put(ctx context.Context, key string, value []byte, baseVersion int64) (int64, error) {
	return n.Store.Put(ctx, n.prefix+key, value, baseVersion)
}
