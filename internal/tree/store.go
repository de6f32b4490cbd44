// Package tree owns the canonical Tag -> Group -> Tab tree. Every mutator
// loads the persisted snapshot, edits a private copy and writes the whole
// tree back with a version check. Ids that do not resolve make the call a
// no-op rather than an error.
package tree

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"nicetab/api/internal/kv"
	"nicetab/api/internal/model"
)

// Discarder receives content removed from the tree. The tag and group
// arguments identify where the content lived; only the groups and tabs
// passed alongside were dropped.
type Discarder interface {
	AddTags(ctx context.Context, tags []model.Tag) error
	AddTabGroups(ctx context.Context, tag model.Tag, groups []model.Group) error
	AddTabs(ctx context.Context, tag model.Tag, group model.Group, tabs []model.Tab) error
}

// GroupTitleResolver maps a native browser group id to its title.
type GroupTitleResolver interface {
	GroupTitle(ctx context.Context, nativeGroupID int) (string, bool)
}

type SettingsSource interface {
	Get(ctx context.Context) (model.Settings, error)
}

// ChangeHook runs after every committed mutation with a copy of the tree.
type ChangeHook func(ctx context.Context, tags []model.Tag)

type Store struct {
	kv       kv.Store
	settings SettingsSource
	logger   zerolog.Logger

	mu sync.Mutex

	hookMu    sync.RWMutex
	discarder Discarder
	titles    GroupTitleResolver
	hooks     []ChangeHook
}

func New(store kv.Store, settings SettingsSource, logger zerolog.Logger) *Store {
	return &Store{
		kv:       store,
		settings: settings,
		logger:   logger.With().Str("component", "tree").Logger(),
	}
}

func (s *Store) SetDiscarder(d Discarder) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.discarder = d
}

func (s *Store) SetGroupTitleResolver(r GroupTitleResolver) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.titles = r
}

func (s *Store) OnChange(hook ChangeHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// txn is the in-memory working copy handed to a mutation.
type txn struct {
	tags      []model.Tag
	settings model.Settings
	discards []discardFunc
}

func (t *txn) tagIndex(tagID string) int {
	if tagID == "" {
		return -1
	}
	return model.FindTag(t.tags, tagID)
}

func (t *txn) groupIndex(tagID, groupID string) (int, int) {
	ti := t.tagIndex(tagID)
	if ti < 0 || groupID == "" {
		return -1, -1
	}
	gi := model.FindGroup(t.tags[ti].GroupList, groupID)
	if gi < 0 {
		return -1, -1
	}
	return ti, gi
}

// discardFunc hands one removal to the recycle bin after commit.
type discardFunc func(ctx context.Context, d Discarder) error

// discardTag queues a removed tag with its non-empty groups.
func (t *txn) discardTag(tag model.Tag) {
	groups := nonEmptyGroups(tag.GroupList)
	if len(groups) == 0 {
		return
	}
	tag = model.CloneTag(tag)
	tag.GroupList = groups
	t.discards = append(t.discards, func(ctx context.Context, d Discarder) error {
		return d.AddTags(ctx, []model.Tag{tag})
	})
}

// discardGroups queues groups removed from tag. Empty groups are skipped.
func (t *txn) discardGroups(tag model.Tag, groups []model.Group) {
	groups = nonEmptyGroups(groups)
	if len(groups) == 0 {
		return
	}
	shell := tagShell(tag)
	t.discards = append(t.discards, func(ctx context.Context, d Discarder) error {
		return d.AddTabGroups(ctx, shell, groups)
	})
}

// discardTabs queues tabs removed from a group of tag.
func (t *txn) discardTabs(tag model.Tag, group model.Group, tabs []model.Tab) {
	if len(tabs) == 0 {
		return
	}
	shell := tagShell(tag)
	g := group
	g.TabList = nil
	tabs = model.CloneTabs(tabs)
	t.discards = append(t.discards, func(ctx context.Context, d Discarder) error {
		return d.AddTabs(ctx, shell, g, tabs)
	})
}

func nonEmptyGroups(groups []model.Group) []model.Group {
	kept := make([]model.Group, 0, len(groups))
	for _, g := range groups {
		if len(g.TabList) > 0 {
			kept = append(kept, model.CloneGroup(g))
		}
	}
	return kept
}

func tagShell(tag model.Tag) model.Tag {
	tag.GroupList = nil
	return tag
}

// pruneIfEmpty drops an unlocked group left without tabs when the setting
// asks for it.
func (t *txn) pruneIfEmpty(ti, gi int) {
	g := t.tags[ti].GroupList[gi]
	if len(g.TabList) > 0 || g.IsLocked || !t.settings.Bool(model.SettingDeleteUnlockedEmptyGroup) {
		return
	}
	t.tags[ti].GroupList = model.RemoveGroupAt(t.tags[ti].GroupList, gi)
}

// insertNewTag places tag directly after the static tag, ahead of any
// starred tags. Returns its index.
func (t *txn) insertNewTag(tag model.Tag) int {
	idx := model.StagingIndex(t.tags) + 1
	t.tags = model.InsertTagAt(t.tags, idx, tag)
	return idx
}

func (s *Store) mutate(ctx context.Context, fn func(*txn) error) ([]model.Tag, error) {
	tags, discards, err := s.commit(ctx, fn)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, tags, discards)
	return tags, nil
}

func (s *Store) commit(ctx context.Context, fn func(*txn) error) ([]model.Tag, []discardFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	var tx *txn
	tags, err := kv.UpdateJSON(ctx, s.kv, kv.KeyTabList, func(current *[]model.Tag) error {
		tx = &txn{tags: ensureStaging(*current), settings: settings}
		if err := fn(tx); err != nil {
			return err
		}
		*current = tx.tags
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("update tag list: %w", err)
	}
	return tags, tx.discards, nil
}

func (s *Store) afterCommit(ctx context.Context, tags []model.Tag, discards []discardFunc) {
	s.hookMu.RLock()
	discarder := s.discarder
	hooks := append([]ChangeHook(nil), s.hooks...)
	s.hookMu.RUnlock()

	if discarder != nil {
		for _, discard := range discards {
			if err := discard(ctx, discarder); err != nil {
				s.logger.Error().Err(err).Msg("recycle removed content")
			}
		}
	}
	for _, hook := range hooks {
		hook(ctx, model.CloneTags(tags))
	}
}

func (s *Store) loadSettings(ctx context.Context) (model.Settings, error) {
	if s.settings == nil {
		return model.DefaultSettings(), nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// ensureStaging guarantees exactly one static tag at index 0.
func ensureStaging(tags []model.Tag) []model.Tag {
	out := make([]model.Tag, 0, len(tags)+1)
	var staging *model.Tag
	for _, tag := range tags {
		if tag.GroupList == nil {
			tag.GroupList = []model.Group{}
		}
		if tag.Static {
			if staging == nil {
				tag.IsStarred = false
				staging = &tag
				continue
			}
			tag.Static = false
		}
		out = append(out, tag)
	}
	if staging == nil {
		fresh := model.NewStagingTag()
		staging = &fresh
	}
	return append([]model.Tag{*staging}, out...)
}

// TagList returns the tree, bootstrapping the staging area on first use.
func (s *Store) TagList(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeyTabList, &tags); err != nil {
		return nil, err
	}
	if idx := model.StagingIndex(tags); idx == 0 {
		return tags, nil
	}
	tags, err := s.mutate(ctx, func(*txn) error { return nil })
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (s *Store) CountInfo(ctx context.Context) (model.CountInfo, error) {
	tags, err := s.TagList(ctx)
	if err != nil {
		return model.CountInfo{}, err
	}
	return model.Count(tags), nil
}

// Export returns the tree without volatile ids.
func (s *Store) Export(ctx context.Context) ([]model.Tag, error) {
	tags, err := s.TagList(ctx)
	if err != nil {
		return nil, err
	}
	return model.ExportTags(tags), nil
}

// Clear leaves a single empty staging area. Nothing goes to the recycle bin.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		staging := tx.tags[0]
		staging.GroupList = []model.Group{}
		tx.tags = []model.Tag{staging}
		return nil
	})
	return err
}
