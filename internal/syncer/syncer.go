// Package syncer reconciles the local tree with a remote backend. One
// Coordinator runs per backend target and never has more than one sync in
// flight.
package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"nicetab/api/internal/model"
	"nicetab/api/internal/tree"
)

type SyncType string

const (
	Auto            SyncType = "auto"
	ManualPushMerge SyncType = "manual-push-merge"
	ManualPullMerge SyncType = "manual-pull-merge"
	ManualPushForce SyncType = "manual-push-force"
	ManualPullForce SyncType = "manual-pull-force"
)

func ParseSyncType(s string) (SyncType, error) {
	switch t := SyncType(s); t {
	case Auto, ManualPushMerge, ManualPullMerge, ManualPushForce, ManualPullForce:
		return t, nil
	case "":
		return Auto, nil
	}
	return "", fmt.Errorf("unknown sync type %q", s)
}

// RemoteContent is what a backend stores: the tab list and the settings.
// Exists is false when the remote holds nothing yet.
type RemoteContent struct {
	Tags     []model.Tag
	Settings model.Settings
	Exists   bool
}

type Backend interface {
	Name() string
	Fetch(ctx context.Context) (RemoteContent, error)
	Push(ctx context.Context, content RemoteContent) error
}

type Tree interface {
	Export(ctx context.Context) ([]model.Tag, error)
	ImportTags(ctx context.Context, tags []model.Tag, mode tree.ImportMode) error
	Clear(ctx context.Context) error
}

type SettingsStore interface {
	Raw(ctx context.Context) (model.Settings, error)
	Replace(ctx context.Context, s model.Settings) error
}

// Backup snapshots the local tree before a destructive pull.
type Backup interface {
	Snapshot(ctx context.Context, tags []model.Tag, message string) (string, error)
}

type Event struct {
	Type    string    `json:"type"`
	Backend string    `json:"backend"`
	Result  Result    `json:"result"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

type Options struct {
	ID       string
	Backend  Backend
	Tree     Tree
	Settings SettingsStore
	Results  *ResultLog
	Status   *StatusLog
	Backup   Backup
	Notifier Notifier
	Logger   zerolog.Logger
	// AutoSync marks the target for the scheduler.
	AutoSync bool
}

const (
	stateIdle int32 = iota
	stateSyncing
)

type Coordinator struct {
	opts     Options
	state    atomic.Int32
	autoSync atomic.Bool
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "sync").Str("backend", opts.ID).Logger(),
		now:    time.Now,
	}
	c.autoSync.Store(opts.AutoSync)
	return c
}

func (c *Coordinator) ID() string     { return c.opts.ID }
func (c *Coordinator) AutoSync() bool { return c.autoSync.Load() }

// SetAutoSync follows a config change without replacing the coordinator.
func (c *Coordinator) SetAutoSync(on bool) { c.autoSync.Store(on) }

func (c *Coordinator) Syncing() bool {
	return c.state.Load() == stateSyncing
}

func (c *Coordinator) Results(ctx context.Context) ([]Result, error) {
	return c.opts.Results.List(ctx, c.opts.ID)
}

// Start runs one sync. It returns false without doing anything when a sync
// for this backend is already running. Failures end up in the result, not
// in an error.
func (c *Coordinator) Start(ctx context.Context, syncType SyncType) (Result, bool) {
	if !c.state.CompareAndSwap(stateIdle, stateSyncing) {
		return Result{}, false
	}
	defer c.state.Store(stateIdle)

	c.setStatus(ctx, Syncing)
	started := c.now()
	err := c.run(ctx, syncType)
	result := Result{SyncType: syncType, SyncTime: c.now().UnixMilli(), SyncResult: Success}
	if err != nil {
		kind := Classify(err)
		result.SyncResult = Failed
		result.Kind = kind
		result.Reason = Reason(c.language(ctx), kind)
		c.logger.Error().Err(err).Str("sync_type", string(syncType)).Str("kind", string(kind)).Msg("sync failed")
	} else {
		c.logger.Info().Str("sync_type", string(syncType)).Dur("took", c.now().Sub(started)).Msg("sync finished")
	}

	// bookkeeping outlives a cancelled sync
	bookkeeping := context.WithoutCancel(ctx)
	if c.opts.Results != nil {
		if err := c.opts.Results.Append(bookkeeping, c.opts.ID, result); err != nil {
			c.logger.Error().Err(err).Msg("record sync result")
		}
	}
	c.setStatus(bookkeeping, Idle)
	c.notify(result)
	return result, true
}

func (c *Coordinator) run(ctx context.Context, syncType SyncType) error {
	switch syncType {
	case ManualPushForce:
		return c.push(ctx)
	case ManualPullForce:
		return c.forcePull(ctx)
	case ManualPullMerge:
		return c.mergeRemote(ctx)
	case ManualPushMerge, Auto:
		if err := c.mergeRemote(ctx); err != nil {
			return err
		}
		return c.push(ctx)
	}
	return fmt.Errorf("unknown sync type %q", syncType)
}

func (c *Coordinator) push(ctx context.Context) error {
	tags, err := c.opts.Tree.Export(ctx)
	if err != nil {
		return fmt.Errorf("export local tags: %w", err)
	}
	settings, err := c.opts.Settings.Raw(ctx)
	if err != nil {
		return fmt.Errorf("load local settings: %w", err)
	}
	content := RemoteContent{Tags: model.SanitizeTags(tags), Settings: settings, Exists: true}
	if err := c.opts.Backend.Push(ctx, content); err != nil {
		return fmt.Errorf("push to %s: %w", c.opts.Backend.Name(), err)
	}
	return nil
}

// mergeRemote folds remote content into the local tree. Settings are merged
// local over remote with the device-local keys left alone.
func (c *Coordinator) mergeRemote(ctx context.Context) error {
	remote, err := c.opts.Backend.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch from %s: %w", c.opts.Backend.Name(), err)
	}
	if !remote.Exists {
		return nil
	}
	if err := c.opts.Tree.ImportTags(ctx, remote.Tags, tree.ImportMerge); err != nil {
		return fmt.Errorf("merge remote tags: %w", err)
	}
	if remote.Settings != nil {
		local, err := c.opts.Settings.Raw(ctx)
		if err != nil {
			return fmt.Errorf("load local settings: %w", err)
		}
		if err := c.opts.Settings.Replace(ctx, model.MergeSettings(local, remote.Settings)); err != nil {
			return fmt.Errorf("save merged settings: %w", err)
		}
	}
	return nil
}

// forcePull replaces the local tree with the remote one. The local tree is
// snapshotted first when a backup is configured.
func (c *Coordinator) forcePull(ctx context.Context) error {
	remote, err := c.opts.Backend.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch from %s: %w", c.opts.Backend.Name(), err)
	}
	if !remote.Exists {
		return ErrRemoteNotFound
	}

	if c.opts.Backup != nil {
		local, err := c.opts.Tree.Export(ctx)
		if err != nil {
			return fmt.Errorf("export local tags: %w", err)
		}
		if _, err := c.opts.Backup.Snapshot(ctx, local, "before force pull from "+c.opts.ID); err != nil {
			return fmt.Errorf("backup before force pull: %w", err)
		}
	}

	if err := c.opts.Tree.Clear(ctx); err != nil {
		return fmt.Errorf("clear local tags: %w", err)
	}
	if err := c.opts.Tree.ImportTags(ctx, remote.Tags, tree.ImportMerge); err != nil {
		return fmt.Errorf("import remote tags: %w", err)
	}
	if remote.Settings != nil {
		local, err := c.opts.Settings.Raw(ctx)
		if err != nil {
			return fmt.Errorf("load local settings: %w", err)
		}
		if err := c.opts.Settings.Replace(ctx, model.AdoptRemoteSettings(local, remote.Settings)); err != nil {
			return fmt.Errorf("save remote settings: %w", err)
		}
	}
	return nil
}

func (c *Coordinator) setStatus(ctx context.Context, status Status) {
	if c.opts.Status == nil {
		return
	}
	if err := c.opts.Status.Set(ctx, c.opts.ID, status); err != nil {
		c.logger.Warn().Err(err).Str("status", string(status)).Msg("persist sync status")
	}
}

func (c *Coordinator) language(ctx context.Context) string {
	if c.opts.Settings == nil {
		return "en"
	}
	settings, err := c.opts.Settings.Raw(ctx)
	if err != nil {
		return "en"
	}
	return settings.String(model.SettingLanguage)
}

// notify tells other instances to reload. Fire-and-forget.
func (c *Coordinator) notify(result Result) {
	if c.opts.Notifier == nil {
		return
	}
	event := Event{Type: "reload", Backend: c.opts.ID, Result: result, At: c.now()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.opts.Notifier.Publish(ctx, event); err != nil {
			c.logger.Warn().Err(err).Msg("publish reload event")
		}
	}()
}
