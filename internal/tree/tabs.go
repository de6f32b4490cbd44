package tree

import (
	"context"

	"nicetab/api/internal/merge"
	"nicetab/api/internal/model"
)

type TabDropParams struct {
	SourceTagID   string `json:"sourceTagId"`
	SourceGroupID string `json:"sourceGroupId"`
	SourceIndex   int    `json:"sourceIndex"`
	TargetTagID   string `json:"targetTagId"`
	TargetGroupID string `json:"targetGroupId"`
	TargetIndex   int    `json:"targetIndex"`
}

type TabMoveParams struct {
	SourceTagID   string   `json:"sourceTagId"`
	SourceGroupID string   `json:"sourceGroupId"`
	TabIDs        []string `json:"tabIds"`
	// TargetTagID empty creates a new tag, TargetGroupID empty a new group.
	TargetTagID   string `json:"targetTagId"`
	TargetGroupID string `json:"targetGroupId"`
}

// CreateTabs files browser tabs into the staging area. Tabs sharing a
// native group id become one group. Ungrouped tabs join the first unlocked,
// unstarred staging group unless createNewGroup is set. Group titles are
// resolved before the tree is locked.
func (s *Store) CreateTabs(ctx context.Context, snapshots []model.TabSnapshot, createNewGroup bool) error {
	if len(snapshots) == 0 {
		return nil
	}
	var order []int
	native := make(map[int][]model.Tab)
	var loose []model.Tab
	for _, snap := range snapshots {
		if snap.URL == "" {
			continue
		}
		if snap.NativeGroupID <= 0 {
			loose = append(loose, snap.Tab())
			continue
		}
		if _, ok := native[snap.NativeGroupID]; !ok {
			order = append(order, snap.NativeGroupID)
		}
		native[snap.NativeGroupID] = append(native[snap.NativeGroupID], snap.Tab())
	}
	titles := s.groupTitles(ctx, order)

	_, err := s.mutate(ctx, func(tx *txn) error {
		existing := make(map[string]bool, len(tx.tags[0].GroupList))
		for _, g := range tx.tags[0].GroupList {
			existing[g.GroupID] = true
		}
		for i, id := range order {
			tx.ingestNamed(titles[i], model.CloneTabs(native[id]))
		}
		if len(loose) > 0 {
			tx.ingestLoose(model.CloneTabs(loose), createNewGroup, existing)
		}
		return nil
	})
	return err
}

// groupTitles looks up a title per native group id, falling back to the
// unnamed group name.
func (s *Store) groupTitles(ctx context.Context, ids []int) []string {
	s.hookMu.RLock()
	resolver := s.titles
	s.hookMu.RUnlock()

	titles := make([]string, len(ids))
	for i, id := range ids {
		titles[i] = model.UnnamedGroup
		if resolver == nil {
			continue
		}
		if resolved, ok := resolver.GroupTitle(ctx, id); ok && resolved != "" {
			titles[i] = resolved
		}
	}
	return titles
}

func (t *txn) allowDuplicateTabs() bool {
	return t.settings.Bool(model.SettingAllowDuplicateTabs)
}

func (t *txn) joinTabs(existing, incoming []model.Tab) []model.Tab {
	if t.allowDuplicateTabs() {
		return append(model.CloneTabs(existing), incoming...)
	}
	return merge.MergeTabs(existing, incoming)
}

func (t *txn) ingestNamed(title string, tabs []model.Tab) {
	staging := &t.tags[0]
	if !t.allowDuplicateTabs() {
		tabs = model.UniqueTabs(tabs)
	}
	if title != model.UnnamedGroup && !t.settings.Bool(model.SettingAllowDuplicateGroups) {
		for i, g := range staging.GroupList {
			if g.GroupName == title && !g.IsLocked {
				staging.GroupList[i].TabList = t.joinTabs(g.TabList, tabs)
				return
			}
		}
	}
	staging.GroupList = model.InsertGroup(staging.GroupList, model.NewGroup(title, tabs))
}

// ingestLoose only joins groups that existed before this ingestion.
func (t *txn) ingestLoose(tabs []model.Tab, createNewGroup bool, existing map[string]bool) {
	staging := &t.tags[0]
	if !t.allowDuplicateTabs() {
		tabs = model.UniqueTabs(tabs)
	}
	if !createNewGroup {
		for i, g := range staging.GroupList {
			if existing[g.GroupID] && !g.IsLocked && !g.IsStarred {
				staging.GroupList[i].TabList = t.joinTabs(g.TabList, tabs)
				return
			}
		}
	}
	staging.GroupList = model.InsertGroup(staging.GroupList, model.NewGroup(model.UnnamedGroup, tabs))
}

// RemoveTabs deletes tabs from an unlocked group. Removed tabs go to the
// recycle bin.
func (s *Store) RemoveTabs(ctx context.Context, tagID, groupID string, tabIDs []string) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti, gi := tx.groupIndex(tagID, groupID)
		if ti < 0 || tx.tags[ti].GroupList[gi].IsLocked {
			return nil
		}
		g := tx.tags[ti].GroupList[gi]
		kept, removed := splitTabs(g.TabList, tabIDs)
		if len(removed) == 0 {
			return nil
		}
		tx.discardTabs(tx.tags[ti], g, removed)
		tx.tags[ti].GroupList[gi].TabList = kept
		tx.pruneIfEmpty(ti, gi)
		return nil
	})
	return err
}

func (s *Store) UpdateTab(ctx context.Context, tagID, groupID string, tab model.Tab) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti, gi := tx.groupIndex(tagID, groupID)
		if ti < 0 {
			return nil
		}
		tabs := tx.tags[ti].GroupList[gi].TabList
		idx := model.FindTab(tabs, tab.TabID)
		if idx < 0 || tab.TabID == "" {
			return nil
		}
		tabs[idx].Title = tab.Title
		tabs[idx].URL = tab.URL
		tabs[idx].FavIconURL = tab.FavIconURL
		return nil
	})
	return err
}

// OnTabDrop moves one tab by index, within a group or across groups.
// Locked groups neither give nor take tabs.
func (s *Store) OnTabDrop(ctx context.Context, p TabDropParams) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		sti, sgi := tx.groupIndex(p.SourceTagID, p.SourceGroupID)
		dti, dgi := tx.groupIndex(p.TargetTagID, p.TargetGroupID)
		if sti < 0 || dti < 0 {
			return nil
		}
		src := tx.tags[sti].GroupList[sgi]
		dst := tx.tags[dti].GroupList[dgi]
		if src.IsLocked || dst.IsLocked || p.SourceIndex < 0 || p.SourceIndex >= len(src.TabList) {
			return nil
		}
		tab := src.TabList[p.SourceIndex]
		srcTabs := append(model.CloneTabs(src.TabList[:p.SourceIndex]), src.TabList[p.SourceIndex+1:]...)

		if sti == dti && sgi == dgi {
			tx.tags[sti].GroupList[sgi].TabList = insertTab(srcTabs, p.TargetIndex, tab)
			return nil
		}

		dstTabs := insertTab(model.CloneTabs(dst.TabList), p.TargetIndex, tab)
		if !tx.allowDuplicateTabs() {
			dstTabs = dedupeKeeping(dstTabs, tab)
		}
		tx.tags[sti].GroupList[sgi].TabList = srcTabs
		tx.tags[dti].GroupList[dgi].TabList = dstTabs
		tx.pruneIfEmpty(sti, sgi)
		return nil
	})
	return err
}

// TabMoveThrough moves the selected tabs to the front of another group.
func (s *Store) TabMoveThrough(ctx context.Context, p TabMoveParams) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		sti, sgi := tx.groupIndex(p.SourceTagID, p.SourceGroupID)
		if sti < 0 || tx.tags[sti].GroupList[sgi].IsLocked {
			return nil
		}
		if p.SourceTagID == p.TargetTagID && p.SourceGroupID == p.TargetGroupID {
			return nil
		}
		kept, moving := splitTabs(tx.tags[sti].GroupList[sgi].TabList, p.TabIDs)
		if len(moving) == 0 {
			return nil
		}

		dti := tx.tagIndex(p.TargetTagID)
		if dti < 0 && p.TargetTagID != "" {
			return nil
		}
		dgi := -1
		if dti >= 0 && p.TargetGroupID != "" {
			dgi = model.FindGroup(tx.tags[dti].GroupList, p.TargetGroupID)
			if dgi < 0 || tx.tags[dti].GroupList[dgi].IsLocked {
				return nil
			}
		}

		if dti < 0 {
			dti = tx.createTagFor(&sti)
		}
		tx.tags[sti].GroupList[sgi].TabList = kept
		if dgi < 0 {
			groups := tx.tags[dti].GroupList
			at := model.FirstUnstarredGroup(groups)
			tx.tags[dti].GroupList = model.InsertGroupAt(groups, at, model.NewGroup(model.UnnamedGroup, moving))
			if dti == sti && at <= sgi {
				sgi++
			}
		} else {
			target := &tx.tags[dti].GroupList[dgi]
			target.TabList = tx.joinTabs(moving, target.TabList)
		}
		tx.pruneIfEmpty(sti, sgi)
		return nil
	})
	return err
}

func splitTabs(tabs []model.Tab, ids []string) (kept, picked []model.Tab) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	kept = []model.Tab{}
	for _, tab := range tabs {
		if _, ok := want[tab.TabID]; ok {
			picked = append(picked, tab)
		} else {
			kept = append(kept, tab)
		}
	}
	return kept, picked
}

func insertTab(tabs []model.Tab, idx int, tab model.Tab) []model.Tab {
	if idx < 0 {
		idx = 0
	}
	if idx > len(tabs) {
		idx = len(tabs)
	}
	tabs = append(tabs, model.Tab{})
	copy(tabs[idx+1:], tabs[idx:])
	tabs[idx] = tab
	return tabs
}

// dedupeKeeping removes other tabs sharing the dropped tab's url.
func dedupeKeeping(tabs []model.Tab, dropped model.Tab) []model.Tab {
	out := tabs[:0]
	for _, tab := range tabs {
		if tab.URL == dropped.URL && tab.TabID != dropped.TabID {
			continue
		}
		out = append(out, tab)
	}
	return out
}
