// Package settings persists the flat feature-flag record.
package settings

import (
	"context"

	"nicetab/api/internal/kv"
	"nicetab/api/internal/model"
)

type Store struct {
	kv kv.Store
}

func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// Get returns the stored record with defaults filled in.
func (s *Store) Get(ctx context.Context) (model.Settings, error) {
	var stored model.Settings
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeySettings, &stored); err != nil {
		return nil, err
	}
	return stored.WithDefaults(), nil
}

// Raw returns only what has been stored, without defaults.
func (s *Store) Raw(ctx context.Context) (model.Settings, error) {
	stored := model.Settings{}
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeySettings, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Update lays patch over the stored record.
func (s *Store) Update(ctx context.Context, patch model.Settings) (model.Settings, error) {
	updated, err := kv.UpdateJSON(ctx, s.kv, kv.KeySettings, func(current *model.Settings) error {
		if *current == nil {
			*current = model.Settings{}
		}
		for k, v := range patch {
			(*current)[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.WithDefaults(), nil
}

// Replace overwrites the whole record.
func (s *Store) Replace(ctx context.Context, next model.Settings) error {
	_, err := kv.UpdateJSON(ctx, s.kv, kv.KeySettings, func(current *model.Settings) error {
		*current = next.Clone()
		return nil
	})
	return err
}
