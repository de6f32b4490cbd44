package gist

import (
	"context"

	"nicetab/api/internal/kv"
)

type Provider string

const (
	GitHub Provider = "github"
	Gitee  Provider = "gitee"
)

// Config is the per-provider entry of the syncConfig record.
type Config struct {
	AccessToken string `json:"accessToken"`
	GistID      string `json:"gistId,omitempty"`
	AutoSync    bool   `json:"autoSync,omitempty"`
}

type ConfigStore struct {
	kv kv.Store
}

func NewConfigStore(store kv.Store) *ConfigStore {
	return &ConfigStore{kv: store}
}

func (s *ConfigStore) All(ctx context.Context) (map[Provider]Config, error) {
	all := map[Provider]Config{}
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeySyncConfig, &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *ConfigStore) Get(ctx context.Context, provider Provider) (Config, error) {
	all, err := s.All(ctx)
	if err != nil {
		return Config{}, err
	}
	return all[provider], nil
}

func (s *ConfigStore) Save(ctx context.Context, provider Provider, cfg Config) error {
	return s.update(ctx, provider, func(c *Config) { *c = cfg })
}

// setGistID caches a resolved gist id without touching the rest of the entry.
func (s *ConfigStore) setGistID(ctx context.Context, provider Provider, id string) error {
	return s.update(ctx, provider, func(c *Config) { c.GistID = id })
}

func (s *ConfigStore) update(ctx context.Context, provider Provider, fn func(*Config)) error {
	_, err := kv.UpdateJSON(ctx, s.kv, kv.KeySyncConfig, func(all *map[Provider]Config) error {
		if *all == nil {
			*all = map[Provider]Config{}
		}
		cfg := (*all)[provider]
		fn(&cfg)
		(*all)[provider] = cfg
		return nil
	})
	return err
}
