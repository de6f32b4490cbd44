package syncer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nicetab/api/internal/model"
)

type SettingsReader interface {
	Get(ctx context.Context) (model.Settings, error)
}

// Scheduler triggers auto syncs while the autoSync setting is on, every
// autoSyncInterval minutes. It checks the settings on each tick so changes
// apply without a restart.
type Scheduler struct {
	registry *Registry
	settings SettingsReader
	tick     time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	lastRun  time.Time
}

func NewScheduler(registry *Registry, settings SettingsReader, tick time.Duration, logger zerolog.Logger) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{
		registry: registry,
		settings: settings,
		tick:     tick,
		logger:   logger.With().Str("component", "sync-scheduler").Logger(),
		now:      time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce starts the auto sync when it is enabled and due.
func (s *Scheduler) runOnce(ctx context.Context) bool {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load settings")
		return false
	}
	if !settings.Bool(model.SettingAutoSync) {
		return false
	}
	interval := time.Duration(settings.Int(model.SettingAutoSyncInterval)) * time.Minute
	if now := s.now(); !s.lastRun.IsZero() && now.Sub(s.lastRun) < interval {
		return false
	}
	syncType, err := ParseSyncType(settings.String(model.SettingAutoSyncType))
	if err != nil {
		syncType = Auto
	}
	s.lastRun = s.now()
	results := s.registry.StartAll(ctx, syncType)
	s.logger.Info().Int("targets", len(results)).Str("sync_type", string(syncType)).Msg("auto sync")
	return true
}
