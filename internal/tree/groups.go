package tree

import (
	"context"

	"nicetab/api/internal/merge"
	"nicetab/api/internal/model"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

type GroupPatch struct {
	GroupName *string `json:"groupName,omitempty"`
	IsLocked  *bool   `json:"isLocked,omitempty"`
}

type MoveGroupParams struct {
	SourceTagID string `json:"sourceTagId"`
	GroupID     string `json:"groupId"`
	// TargetTagID empty creates a new tag.
	TargetTagID string `json:"targetTagId"`
	AutoMerge   bool   `json:"autoMerge"`
}

// CreateTabGroup adds a group at the first unstarred slot of tagID.
func (s *Store) CreateTabGroup(ctx context.Context, tagID, name string, tabs []model.Tab) (model.Group, error) {
	var created model.Group
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti := tx.tagIndex(tagID)
		if ti < 0 {
			return nil
		}
		created = model.NewGroup(name, freshTabs(tabs))
		tx.tags[ti].GroupList = model.InsertGroup(tx.tags[ti].GroupList, created)
		return nil
	})
	if err != nil {
		return model.Group{}, err
	}
	return created, nil
}

func (s *Store) UpdateTabGroup(ctx context.Context, tagID, groupID string, patch GroupPatch) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti, gi := tx.groupIndex(tagID, groupID)
		if ti < 0 {
			return nil
		}
		g := &tx.tags[ti].GroupList[gi]
		if patch.GroupName != nil {
			g.GroupName = *patch.GroupName
		}
		if patch.IsLocked != nil {
			g.IsLocked = *patch.IsLocked
		}
		return nil
	})
	return err
}

func (s *Store) RemoveTabGroup(ctx context.Context, tagID, groupID string) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti, gi := tx.groupIndex(tagID, groupID)
		if ti < 0 {
			return nil
		}
		tx.discardGroups(tx.tags[ti], tx.tags[ti].GroupList[gi:gi+1])
		tx.tags[ti].GroupList = model.RemoveGroupAt(tx.tags[ti].GroupList, gi)
		return nil
	})
	return err
}

// ToggleTabGroupStarred pulls the group out and reinserts it at the front
// (starring) or at the first unstarred slot (unstarring).
func (s *Store) ToggleTabGroupStarred(ctx context.Context, tagID, groupID string, starred bool) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti, gi := tx.groupIndex(tagID, groupID)
		if ti < 0 {
			return nil
		}
		groups := tx.tags[ti].GroupList
		g := groups[gi]
		groups = model.RemoveGroupAt(groups, gi)
		g.IsStarred = starred
		tx.tags[ti].GroupList = model.InsertGroup(groups, g)
		return nil
	})
	return err
}

// TabGroupMove swaps a group with its neighbour. At the edge of a tag the
// group is carried into the previous or next tag and takes the starred flag
// of the group it lands next to. A swap across the starred boundary inside
// one tag does nothing.
func (s *Store) TabGroupMove(ctx context.Context, tagID, groupID string, direction Direction) error {
	step := 1
	if direction == Up {
		step = -1
	}
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti, gi := tx.groupIndex(tagID, groupID)
		if ti < 0 {
			return nil
		}
		groups := tx.tags[ti].GroupList
		target := gi + step
		if target >= 0 && target < len(groups) {
			if groups[target].IsStarred != groups[gi].IsStarred {
				return nil
			}
			groups[gi], groups[target] = groups[target], groups[gi]
			return nil
		}

		next := ti + step
		if next < 0 || next >= len(tx.tags) {
			return nil
		}
		g := groups[gi]
		tx.tags[ti].GroupList = model.RemoveGroupAt(groups, gi)
		dest := tx.tags[next].GroupList
		if step < 0 {
			g.IsStarred = len(dest) > 0 && dest[len(dest)-1].IsStarred
			tx.tags[next].GroupList = append(dest, g)
		} else {
			g.IsStarred = len(dest) > 0 && dest[0].IsStarred
			tx.tags[next].GroupList = model.InsertGroupAt(dest, 0, g)
		}
		return nil
	})
	return err
}

// TabGroupMoveThrough moves one group to another tag.
func (s *Store) TabGroupMoveThrough(ctx context.Context, params MoveGroupParams) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti, gi := tx.groupIndex(params.SourceTagID, params.GroupID)
		if ti < 0 || params.SourceTagID == params.TargetTagID {
			return nil
		}
		dest := tx.tagIndex(params.TargetTagID)
		if dest < 0 {
			if params.TargetTagID != "" {
				return nil
			}
			dest = tx.createTagFor(&ti)
		}
		g := tx.tags[ti].GroupList[gi]
		tx.tags[ti].GroupList = model.RemoveGroupAt(tx.tags[ti].GroupList, gi)
		tx.tags[dest].GroupList = placeGroups(tx.tags[dest].GroupList, []model.Group{g}, params.AutoMerge)
		return nil
	})
	return err
}

// AllTabGroupsMoveThrough moves every unlocked group of sourceTagID.
// Locked groups stay where they are.
func (s *Store) AllTabGroupsMoveThrough(ctx context.Context, sourceTagID, targetTagID string, autoMerge bool) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti := tx.tagIndex(sourceTagID)
		if ti < 0 || sourceTagID == targetTagID {
			return nil
		}
		dest := tx.tagIndex(targetTagID)
		if dest < 0 {
			if targetTagID != "" {
				return nil
			}
			dest = tx.createTagFor(&ti)
		}
		var moved, kept []model.Group
		for _, g := range tx.tags[ti].GroupList {
			if g.IsLocked {
				kept = append(kept, g)
			} else {
				moved = append(moved, g)
			}
		}
		if len(moved) == 0 {
			return nil
		}
		if kept == nil {
			kept = []model.Group{}
		}
		tx.tags[ti].GroupList = kept
		tx.tags[dest].GroupList = placeGroups(tx.tags[dest].GroupList, moved, autoMerge)
		return nil
	})
	return err
}

// createTagFor inserts an unnamed tag and fixes up the caller's source index.
func (t *txn) createTagFor(source *int) int {
	idx := t.insertNewTag(model.NewTag(model.UnnamedTag))
	if idx <= *source {
		*source++
	}
	return idx
}

// placeGroups inserts moved groups into target keeping their order. With
// autoMerge a named group folds into a same-named target group.
func placeGroups(target, moved []model.Group, autoMerge bool) []model.Group {
	if autoMerge {
		return merge.MergeGroupsAndTabs(target, moved, model.UnnamedGroup)
	}
	return merge.MergeGroupList(target, moved, merge.Rules[model.Group]{
		Key:     func(g model.Group) string { return g.GroupID },
		Starred: func(g model.Group) bool { return g.IsStarred },
		Reduce:  func(existing, _ model.Group) model.Group { return existing },
	})
}

// freshTabs copies tabs, giving any tab without an id a new one.
func freshTabs(tabs []model.Tab) []model.Tab {
	out := model.CloneTabs(tabs)
	for i := range out {
		if out[i].TabID == "" {
			out[i] = model.NewTab(out[i].Title, out[i].URL, out[i].FavIconURL)
		}
	}
	return out
}
