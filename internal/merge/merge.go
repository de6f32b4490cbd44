// Package merge combines tag, group and tab lists by key. Every function is
// pure: inputs are never modified.
package merge

import (
	"strings"

	"nicetab/api/internal/model"
)

// Rules tells MergeGroupList how to identify, order and fold items.
// Items for which Single reports true pair off: each one folds into at most
// one item of the original list, and inserted items never take folds.
type Rules[T any] struct {
	Key     func(T) string
	Starred func(T) bool
	Reduce  func(existing, incoming T) T
	Single  func(T) bool
}

// MergeGroupList folds insert into list. Keys already present keep their
// position and are combined with Reduce. New keys go to the boundary between
// the starred and unstarred blocks: starred ones at the end of the starred
// block, unstarred ones at the start of the unstarred block, both in
// insertion order.
func MergeGroupList[T any](list, insert []T, rules Rules[T]) []T {
	out := make([]T, len(list), len(list)+len(insert))
	copy(out, list)

	single := func(item T) bool { return rules.Single != nil && rules.Single(item) }

	// index holds the candidate positions per key. Regular keys keep only
	// their first position; single keys queue every unmatched one.
	index := make(map[string][]int, len(out))
	for i, item := range out {
		k := rules.Key(item)
		if _, ok := index[k]; ok && !single(item) {
			continue
		}
		index[k] = append(index[k], i)
	}

	boundary := 0
	for boundary < len(out) && rules.Starred(out[boundary]) {
		boundary++
	}
	unstarredAdded := 0

	for _, item := range insert {
		k := rules.Key(item)
		if positions := index[k]; len(positions) > 0 {
			i := positions[0]
			out[i] = rules.Reduce(out[i], item)
			if single(item) {
				index[k] = positions[1:]
			}
			continue
		}
		pos := boundary
		if rules.Starred(item) {
			boundary++
		} else {
			pos = boundary + unstarredAdded
			unstarredAdded++
		}
		out = insertAt(out, pos, item)
		for _, positions := range index {
			for j, i := range positions {
				if i >= pos {
					positions[j] = i + 1
				}
			}
		}
		if !single(item) {
			index[k] = []int{pos}
		}
	}
	return out
}

func insertAt[T any](list []T, pos int, item T) []T {
	var zero T
	list = append(list, zero)
	copy(list[pos+1:], list[pos:])
	list[pos] = item
	return list
}

// MergeTabs is the URL union of two tab lists, target order first.
func MergeTabs(target, insert []model.Tab) []model.Tab {
	all := make([]model.Tab, 0, len(target)+len(insert))
	all = append(all, target...)
	all = append(all, insert...)
	return model.UniqueTabs(all)
}

// MergeGroupsAndTabs merges groups by name and unions the tabs of groups that
// share one. Groups named exceptValue are not merge keys: each survives on
// its own, except that it may pair with one target group of the same name
// and the exact same url sequence, so re-merging identical content stays
// idempotent.
func MergeGroupsAndTabs(target, insert []model.Group, exceptValue string) []model.Group {
	rules := groupRules(func(g model.Group) string {
		if g.GroupName == exceptValue {
			return exceptKey(exceptValue, g.URLs())
		}
		return "name:" + g.GroupName
	})
	rules.Single = func(g model.Group) bool { return g.GroupName == exceptValue }
	return MergeGroupList(target, insert, rules)
}

// MergeTags deep merges tags by name. The static tag only matches the static
// tag, and unnamed tags follow the same rule as unnamed groups.
func MergeTags(target, insert []model.Tag) []model.Tag {
	return MergeGroupList(target, insert, Rules[model.Tag]{
		Key: func(t model.Tag) string {
			switch {
			case t.Static:
				return "static"
			case t.TagName == model.UnnamedTag:
				return exceptKey(model.UnnamedTag, tagFingerprint(t))
			}
			return "name:" + t.TagName
		},
		Starred: tagStarred,
		Single:  func(t model.Tag) bool { return !t.Static && t.TagName == model.UnnamedTag },
		Reduce: func(existing, incoming model.Tag) model.Tag {
			existing.GroupList = MergeGroupsAndTabs(existing.GroupList, incoming.GroupList, model.UnnamedGroup)
			return existing
		},
	})
}

// MergeTagsByID merges by identity instead of name. Used when recycled
// content goes back into the live tree: a tag with no live match lands
// directly after the static tag.
func MergeTagsByID(target, insert []model.Tag) []model.Tag {
	return MergeGroupList(target, insert, Rules[model.Tag]{
		Key:     func(t model.Tag) string { return t.TagID },
		Starred: func(t model.Tag) bool { return t.Static },
		Reduce: func(existing, incoming model.Tag) model.Tag {
			existing.GroupList = MergeGroupsByID(existing.GroupList, incoming.GroupList)
			return existing
		},
	})
}

func MergeGroupsByID(target, insert []model.Group) []model.Group {
	return MergeGroupList(target, insert, groupRules(func(g model.Group) string { return g.GroupID }))
}

func groupRules(key func(model.Group) string) Rules[model.Group] {
	return Rules[model.Group]{
		Key:     key,
		Starred: func(g model.Group) bool { return g.IsStarred },
		Reduce: func(existing, incoming model.Group) model.Group {
			existing.TabList = MergeTabs(existing.TabList, incoming.TabList)
			return existing
		},
	}
}

// The static tag sits in front of every block, so it counts as starred.
func tagStarred(t model.Tag) bool {
	return t.Static || t.IsStarred
}

func exceptKey(name string, content []string) string {
	return "except:" + name + "\x00" + strings.Join(content, "\n")
}

func tagFingerprint(t model.Tag) []string {
	var parts []string
	for _, g := range t.GroupList {
		parts = append(parts, "#"+g.GroupName)
		parts = append(parts, g.URLs()...)
	}
	return parts
}
