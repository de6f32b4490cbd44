// Package recycle keeps content removed from the tree until it is recovered
// or purged. Entries are stored unlocked and unstarred whatever their state
// was at deletion.
package recycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"nicetab/api/internal/kv"
	"nicetab/api/internal/merge"
	"nicetab/api/internal/model"
)

// Restorer puts recycled tags back into the live tree by id.
type Restorer interface {
	RestoreTags(ctx context.Context, tags []model.Tag) error
}

type Bin struct {
	kv     kv.Store
	tree   Restorer
	logger zerolog.Logger

	mu sync.Mutex
}

func New(store kv.Store, tree Restorer, logger zerolog.Logger) *Bin {
	return &Bin{
		kv:     store,
		tree:   tree,
		logger: logger.With().Str("component", "recycle").Logger(),
	}
}

func (b *Bin) List(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	if _, err := kv.GetJSON(ctx, b.kv, kv.KeyRecycleBin, &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	return tags, nil
}

func (b *Bin) CountInfo(ctx context.Context) (model.CountInfo, error) {
	tags, err := b.List(ctx)
	if err != nil {
		return model.CountInfo{}, err
	}
	return model.Count(tags), nil
}

// AddTags merges removed content into the bin by id. Newer content goes
// first: new tags and groups are prepended and tabs of a group that was
// deleted before are put ahead of the older ones.
func (b *Bin) AddTags(ctx context.Context, tags []model.Tag) error {
	incoming := make([]model.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag.TagID == "" {
			continue
		}
		incoming = append(incoming, reset(tag))
	}
	if len(incoming) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.update(ctx, func(bin []model.Tag) []model.Tag {
		return merge.MergeGroupList(bin, incoming, merge.Rules[model.Tag]{
			Key:     func(t model.Tag) string { return t.TagID },
			Starred: never[model.Tag],
			Reduce: func(existing, incoming model.Tag) model.Tag {
				existing.TagName = incoming.TagName
				existing.GroupList = merge.MergeGroupList(existing.GroupList, incoming.GroupList, merge.Rules[model.Group]{
					Key:     func(g model.Group) string { return g.GroupID },
					Starred: never[model.Group],
					Reduce: func(old, fresh model.Group) model.Group {
						old.GroupName = fresh.GroupName
						old.TabList = merge.MergeTabs(fresh.TabList, old.TabList)
						return old
					},
				})
				return existing
			},
		})
	})
}

func (b *Bin) AddTabGroups(ctx context.Context, tag model.Tag, groups []model.Group) error {
	tag.GroupList = groups
	return b.AddTags(ctx, []model.Tag{tag})
}

func (b *Bin) AddTabs(ctx context.Context, tag model.Tag, group model.Group, tabs []model.Tab) error {
	group.TabList = tabs
	return b.AddTabGroups(ctx, tag, []model.Group{group})
}

func (b *Bin) RecoverTag(ctx context.Context, tagID string) error {
	return b.RecoverTags(ctx, []string{tagID})
}

// RecoverTags restores the given tags into the tree, then drops them from
// the bin. Unknown ids are ignored.
func (b *Bin) RecoverTags(ctx context.Context, tagIDs []string) error {
	want := make(map[string]bool, len(tagIDs))
	for _, id := range tagIDs {
		want[id] = true
	}
	return b.recover(ctx, func(t model.Tag) (model.Tag, bool) { return t, want[t.TagID] })
}

func (b *Bin) RecoverAll(ctx context.Context) error {
	return b.recover(ctx, func(t model.Tag) (model.Tag, bool) { return t, true })
}

// RecoverTabGroup restores a single group into its tag.
func (b *Bin) RecoverTabGroup(ctx context.Context, tagID, groupID string) error {
	return b.recover(ctx, func(t model.Tag) (model.Tag, bool) {
		if t.TagID != tagID {
			return t, false
		}
		gi := model.FindGroup(t.GroupList, groupID)
		if gi < 0 {
			return t, false
		}
		t.GroupList = []model.Group{t.GroupList[gi]}
		return t, true
	})
}

// recover hands the selected content to the tree first and only removes it
// from the bin once the restore committed.
func (b *Bin) recover(ctx context.Context, pick func(model.Tag) (model.Tag, bool)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bin, err := b.List(ctx)
	if err != nil {
		return err
	}
	var selected []model.Tag
	for _, tag := range bin {
		if picked, ok := pick(model.CloneTag(tag)); ok {
			selected = append(selected, picked)
		}
	}
	if len(selected) == 0 {
		return nil
	}
	if err := b.tree.RestoreTags(ctx, selected); err != nil {
		return fmt.Errorf("restore recycled tags: %w", err)
	}
	b.logger.Info().Int("tags", len(selected)).Msg("recovered from recycle bin")
	return b.update(ctx, func(bin []model.Tag) []model.Tag {
		return subtract(bin, selected)
	})
}

func (b *Bin) RemoveTag(ctx context.Context, tagID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.update(ctx, func(bin []model.Tag) []model.Tag {
		if i := model.FindTag(bin, tagID); i >= 0 {
			bin = model.RemoveTagAt(bin, i)
		}
		return bin
	})
}

func (b *Bin) RemoveTabGroup(ctx context.Context, tagID, groupID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.update(ctx, func(bin []model.Tag) []model.Tag {
		return subtract(bin, []model.Tag{{TagID: tagID, GroupList: []model.Group{{GroupID: groupID}}}})
	})
}

func (b *Bin) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.update(ctx, func([]model.Tag) []model.Tag { return []model.Tag{} })
}

func (b *Bin) update(ctx context.Context, fn func([]model.Tag) []model.Tag) error {
	_, err := kv.UpdateJSON(ctx, b.kv, kv.KeyRecycleBin, func(bin *[]model.Tag) error {
		next := fn(*bin)
		if next == nil {
			next = []model.Tag{}
		}
		*bin = next
		return nil
	})
	if err != nil {
		return fmt.Errorf("update recycle bin: %w", err)
	}
	return nil
}

// subtract removes the groups listed in picked from bin. A picked tag with
// every bin group listed removes the tag itself; tags left without groups
// are dropped.
func subtract(bin, picked []model.Tag) []model.Tag {
	drop := make(map[string]map[string]bool, len(picked))
	for _, tag := range picked {
		groups := make(map[string]bool, len(tag.GroupList))
		for _, g := range tag.GroupList {
			groups[g.GroupID] = true
		}
		drop[tag.TagID] = groups
	}
	out := make([]model.Tag, 0, len(bin))
	for _, tag := range bin {
		groups, ok := drop[tag.TagID]
		if !ok {
			out = append(out, tag)
			continue
		}
		kept := make([]model.Group, 0, len(tag.GroupList))
		for _, g := range tag.GroupList {
			if !groups[g.GroupID] {
				kept = append(kept, g)
			}
		}
		if len(kept) > 0 {
			tag.GroupList = kept
			out = append(out, tag)
		}
	}
	return out
}

func reset(tag model.Tag) model.Tag {
	tag = model.CloneTag(tag)
	tag.IsLocked = false
	tag.IsStarred = false
	tag.Static = false
	for i := range tag.GroupList {
		tag.GroupList[i].IsLocked = false
		tag.GroupList[i].IsStarred = false
	}
	return tag
}

func never[T any](T) bool { return false }
