package webdav

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"nicetab/api/internal/kv"
	"nicetab/api/internal/syncer"
	"nicetab/api/internal/util"
)

var (
	ErrConfigNotFound = errors.New("webdav config not found")
	ErrInvalidConfig  = errors.New("invalid webdav config")
)

// Config is one named WebDAV endpoint.
type Config struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	URL      string `json:"webdavConnectionUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
	AutoSync bool   `json:"autoSync"`
}

func (c Config) validate() error {
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidConfig
	}
	return nil
}

type configRecord struct {
	ConfigList []Config `json:"configList"`
}

// ConfigStore keeps the endpoint list. Removing an endpoint also drops its
// sync results and status.
type ConfigStore struct {
	kv      kv.Store
	results *syncer.ResultLog
	status  *syncer.StatusLog
}

func NewConfigStore(store kv.Store, results *syncer.ResultLog, status *syncer.StatusLog) *ConfigStore {
	return &ConfigStore{kv: store, results: results, status: status}
}

func (s *ConfigStore) List(ctx context.Context) ([]Config, error) {
	var rec configRecord
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeyWebDAVConfig, &rec); err != nil {
		return nil, err
	}
	if rec.ConfigList == nil {
		rec.ConfigList = []Config{}
	}
	return rec.ConfigList, nil
}

func (s *ConfigStore) Get(ctx context.Context, key string) (Config, error) {
	list, err := s.List(ctx)
	if err != nil {
		return Config{}, err
	}
	for _, c := range list {
		if c.Key == key {
			return c, nil
		}
	}
	return Config{}, ErrConfigNotFound
}

// AddConfig stores cfg under a freshly generated key.
func (s *ConfigStore) AddConfig(ctx context.Context, cfg Config) (Config, error) {
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.Key = util.NewID("webdav")
	_, err := kv.UpdateJSON(ctx, s.kv, kv.KeyWebDAVConfig, func(rec *configRecord) error {
		rec.ConfigList = append(rec.ConfigList, cfg)
		return nil
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) UpdateConfig(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	_, err := kv.UpdateJSON(ctx, s.kv, kv.KeyWebDAVConfig, func(rec *configRecord) error {
		for i := range rec.ConfigList {
			if rec.ConfigList[i].Key == cfg.Key {
				rec.ConfigList[i] = cfg
				return nil
			}
		}
		return ErrConfigNotFound
	})
	return err
}

func (s *ConfigStore) RemoveConfig(ctx context.Context, key string) error {
	_, err := kv.UpdateJSON(ctx, s.kv, kv.KeyWebDAVConfig, func(rec *configRecord) error {
		kept := rec.ConfigList[:0]
		for _, c := range rec.ConfigList {
			if c.Key != key {
				kept = append(kept, c)
			}
		}
		rec.ConfigList = kept
		return nil
	})
	if err != nil {
		return err
	}
	if s.results != nil {
		if err := s.results.Drop(ctx, key); err != nil {
			return err
		}
	}
	if s.status != nil {
		return s.status.Drop(ctx, key)
	}
	return nil
}
