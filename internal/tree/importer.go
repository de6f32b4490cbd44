package tree

import (
	"context"
	"fmt"
	"sort"

	"nicetab/api/internal/merge"
	"nicetab/api/internal/model"
)

type ImportMode string

const (
	ImportOverride ImportMode = "override"
	ImportAppend   ImportMode = "append"
	ImportMerge    ImportMode = "merge"
)

func ParseImportMode(s string) (ImportMode, error) {
	switch mode := ImportMode(s); mode {
	case ImportOverride, ImportAppend, ImportMerge:
		return mode, nil
	case "":
		return ImportMerge, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// ImportTags brings external tags in. Ids are always regenerated.
//   - override replaces the tree
//   - append puts new tags in front and folds only the staging area by name
//   - merge deep merges tags, groups and tabs by name
func (s *Store) ImportTags(ctx context.Context, tags []model.Tag, mode ImportMode) error {
	incoming := normalizeOrder(model.RegenerateIDs(tags))
	_, err := s.mutate(ctx, func(tx *txn) error {
		switch mode {
		case ImportOverride:
			tx.tags = ensureStaging(incoming)
		case ImportAppend:
			tx.tags = appendTags(tx.tags, incoming)
		default:
			tx.tags = ensureStaging(merge.MergeTags(tx.tags, incoming))
		}
		return nil
	})
	return err
}

func appendTags(current, incoming []model.Tag) []model.Tag {
	out := model.CloneTags(current)
	var fresh []model.Tag
	for _, tag := range incoming {
		if tag.Static {
			out[0].GroupList = merge.MergeGroupsAndTabs(out[0].GroupList, tag.GroupList, model.UnnamedGroup)
			continue
		}
		fresh = append(fresh, tag)
	}
	return merge.MergeGroupList(out, fresh, merge.Rules[model.Tag]{
		Key:     func(t model.Tag) string { return t.TagID },
		Starred: func(t model.Tag) bool { return t.Static || t.IsStarred },
		Reduce:  func(existing, _ model.Tag) model.Tag { return existing },
	})
}

// RestoreTags merges tags back by id. A tag that no longer exists is
// recreated at the front of the unstarred tags.
func (s *Store) RestoreTags(ctx context.Context, tags []model.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	restored := model.CloneTags(tags)
	_, err := s.mutate(ctx, func(tx *txn) error {
		tx.tags = ensureStaging(merge.MergeTagsByID(tx.tags, restored))
		return nil
	})
	return err
}

// normalizeOrder stable-sorts starred tags and groups ahead of unstarred
// ones. The static tag keeps the lead.
func normalizeOrder(tags []model.Tag) []model.Tag {
	sort.SliceStable(tags, func(i, j int) bool {
		return tagRank(tags[i]) < tagRank(tags[j])
	})
	for i := range tags {
		groups := tags[i].GroupList
		sort.SliceStable(groups, func(a, b int) bool {
			return groups[a].IsStarred && !groups[b].IsStarred
		})
	}
	return tags
}

func tagRank(t model.Tag) int {
	switch {
	case t.Static:
		return 0
	case t.IsStarred:
		return 1
	}
	return 2
}
