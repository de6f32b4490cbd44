package model

// FirstUnstarredGroup returns the index of the first unstarred group, or
// len(groups) when every group is starred.
func FirstUnstarredGroup(groups []Group) int {
	for i, g := range groups {
		if !g.IsStarred {
			return i
		}
	}
	return len(groups)
}

// FirstUnstarredTag is the tag-level counterpart. The static tag is skipped.
func FirstUnstarredTag(tags []Tag) int {
	for i, t := range tags {
		if t.Static {
			continue
		}
		if !t.IsStarred {
			return i
		}
	}
	return len(tags)
}

// InsertGroup places g at the head of its block: a starred group goes to the
// front, an unstarred one to the first unstarred slot.
func InsertGroup(groups []Group, g Group) []Group {
	idx := 0
	if !g.IsStarred {
		idx = FirstUnstarredGroup(groups)
	}
	return InsertGroupAt(groups, idx, g)
}

func InsertGroupAt(groups []Group, idx int, g Group) []Group {
	if idx < 0 {
		idx = 0
	}
	if idx > len(groups) {
		idx = len(groups)
	}
	groups = append(groups, Group{})
	copy(groups[idx+1:], groups[idx:])
	groups[idx] = g
	return groups
}

func RemoveGroupAt(groups []Group, idx int) []Group {
	return append(groups[:idx], groups[idx+1:]...)
}

func InsertTagAt(tags []Tag, idx int, t Tag) []Tag {
	if idx < 0 {
		idx = 0
	}
	if idx > len(tags) {
		idx = len(tags)
	}
	tags = append(tags, Tag{})
	copy(tags[idx+1:], tags[idx:])
	tags[idx] = t
	return tags
}

func RemoveTagAt(tags []Tag, idx int) []Tag {
	return append(tags[:idx], tags[idx+1:]...)
}

// StarredFirst reports whether no starred group follows an unstarred one.
func StarredFirst(groups []Group) bool {
	seenUnstarred := false
	for _, g := range groups {
		if !g.IsStarred {
			seenUnstarred = true
			continue
		}
		if seenUnstarred {
			return false
		}
	}
	return true
}

// TagsStarredFirst checks the tag list and every group list inside it.
func TagsStarredFirst(tags []Tag) bool {
	seenUnstarred := false
	for _, t := range tags {
		if !StarredFirst(t.GroupList) {
			return false
		}
		if t.Static {
			continue
		}
		if !t.IsStarred {
			seenUnstarred = true
		} else if seenUnstarred {
			return false
		}
	}
	return true
}

func FindTag(tags []Tag, tagID string) int {
	for i, t := range tags {
		if t.TagID == tagID {
			return i
		}
	}
	return -1
}

func FindGroup(groups []Group, groupID string) int {
	for i, g := range groups {
		if g.GroupID == groupID {
			return i
		}
	}
	return -1
}

func FindTab(tabs []Tab, tabID string) int {
	for i, t := range tabs {
		if t.TabID == tabID {
			return i
		}
	}
	return -1
}

func StagingIndex(tags []Tag) int {
	for i, t := range tags {
		if t.Static {
			return i
		}
	}
	return -1
}
