package app

import (
	"context"
	"net/http"

	"nicetab/api/internal/kv"
	"nicetab/api/internal/syncer"
	"nicetab/api/internal/syncer/gist"
	"nicetab/api/internal/syncer/webdav"
)

// SyncTargetView describes one registered sync target.
type SyncTargetView struct {
	ID       string `json:"id"`
	Syncing  bool   `json:"syncing"`
	AutoSync bool   `json:"autoSync"`
}

func (s *Service) SyncTargets() []SyncTargetView {
	ids := s.registry.IDs()
	out := make([]SyncTargetView, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.registry.Get(id); ok {
			out = append(out, SyncTargetView{ID: id, Syncing: c.Syncing(), AutoSync: c.AutoSync()})
		}
	}
	return out
}

// Sync starts a sync on target id. started is false when one is already
// running there.
func (s *Service) Sync(ctx context.Context, id, syncType string) (syncer.Result, bool, error) {
	t, err := syncer.ParseSyncType(syncType)
	if err != nil {
		return syncer.Result{}, false, domainError(http.StatusBadRequest, "INVALID_SYNC_TYPE", err.Error(), nil)
	}
	return s.registry.Start(ctx, id, t)
}

func (s *Service) SyncResults(ctx context.Context, id string) ([]syncer.Result, error) {
	c, ok := s.registry.Get(id)
	if !ok {
		return nil, syncer.ErrUnknownBackend
	}
	return c.Results(ctx)
}

func (s *Service) GistConfigs(ctx context.Context) (map[gist.Provider]gist.Config, error) {
	return s.gistConfigs.All(ctx)
}

func (s *Service) SaveGistConfig(ctx context.Context, provider gist.Provider, cfg gist.Config) error {
	if provider != gist.GitHub && provider != gist.Gitee {
		return domainError(http.StatusBadRequest, "UNKNOWN_PROVIDER", "provider must be github or gitee", nil)
	}
	if err := s.gistConfigs.Save(ctx, provider, cfg); err != nil {
		return err
	}
	if c, ok := s.registry.Get(string(provider)); ok {
		c.SetAutoSync(cfg.AutoSync)
	}
	return nil
}

func (s *Service) WebDAVConfigs(ctx context.Context) ([]webdav.Config, error) {
	return s.webdavConfigs.List(ctx)
}

func (s *Service) AddWebDAVConfig(ctx context.Context, cfg webdav.Config) (webdav.Config, error) {
	added, err := s.webdavConfigs.AddConfig(ctx, cfg)
	if err != nil {
		return webdav.Config{}, err
	}
	s.registerWebDAV(added)
	return added, nil
}

func (s *Service) UpdateWebDAVConfig(ctx context.Context, cfg webdav.Config) error {
	if err := s.webdavConfigs.UpdateConfig(ctx, cfg); err != nil {
		return err
	}
	if c, ok := s.registry.Get(cfg.Key); ok {
		c.SetAutoSync(cfg.AutoSync)
	} else {
		s.registerWebDAV(cfg)
	}
	return nil
}

func (s *Service) RemoveWebDAVConfig(ctx context.Context, key string) error {
	if err := s.webdavConfigs.RemoveConfig(ctx, key); err != nil {
		return err
	}
	s.registry.Unregister(key)
	return nil
}

func (s *Service) registerGist(provider gist.Provider, autoSync bool, opts ...gist.Option) {
	o := s.syncBase
	o.ID = string(provider)
	o.Backend = gist.New(provider, s.gistConfigs, opts...)
	o.Results = syncer.NewResultLog(s.kv, kv.KeySyncResult)
	o.Status = syncer.NewStatusLog(s.kv, kv.KeySyncStatus)
	o.AutoSync = autoSync
	s.registry.Register(syncer.NewCoordinator(o))
}

func (s *Service) registerWebDAV(cfg webdav.Config) {
	o := s.syncBase
	o.ID = cfg.Key
	o.Backend = webdav.New(cfg.Key, s.webdavConfigs, s.webdavOpts...)
	o.Results = s.webdavResults
	o.Status = s.webdavStatus
	o.AutoSync = cfg.AutoSync
	s.registry.Register(syncer.NewCoordinator(o))
}
