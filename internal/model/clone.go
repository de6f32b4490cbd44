package model

import "nicetab/api/internal/util"

func CloneTabs(tabs []Tab) []Tab {
	if tabs == nil {
		return []Tab{}
	}
	out := make([]Tab, len(tabs))
	copy(out, tabs)
	return out
}

func CloneGroup(g Group) Group {
	g.TabList = CloneTabs(g.TabList)
	return g
}

func CloneGroups(groups []Group) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = CloneGroup(g)
	}
	return out
}

func CloneTag(t Tag) Tag {
	t.GroupList = CloneGroups(t.GroupList)
	return t
}

func CloneTags(tags []Tag) []Tag {
	out := make([]Tag, len(tags))
	for i, t := range tags {
		out[i] = CloneTag(t)
	}
	return out
}

// ExportTags drops tagId, groupId, tabId and createTime so the tree can be
// moved between installs.
func ExportTags(tags []Tag) []Tag {
	out := CloneTags(tags)
	for i := range out {
		out[i].TagID = ""
		for j := range out[i].GroupList {
			g := &out[i].GroupList[j]
			g.GroupID = ""
			g.CreateTime = ""
			for k := range g.TabList {
				g.TabList[k].TabID = ""
			}
		}
	}
	return out
}

// RegenerateIDs gives every node a fresh id. Missing names and creation times
// are filled in.
func RegenerateIDs(tags []Tag) []Tag {
	out := CloneTags(tags)
	for i := range out {
		out[i].TagID = util.NewID("")
		if out[i].GroupList == nil {
			out[i].GroupList = []Group{}
		}
		for j := range out[i].GroupList {
			g := &out[i].GroupList[j]
			g.GroupID = util.NewID("")
			if g.GroupName == "" {
				g.GroupName = UnnamedGroup
			}
			if g.CreateTime == "" {
				g.CreateTime = CreateTime()
			}
			for k := range g.TabList {
				g.TabList[k].TabID = util.NewID("")
			}
		}
	}
	return out
}

func UniqueTabs(tabs []Tab) []Tab {
	return util.GetUniqueList(tabs, func(t Tab) string { return t.URL })
}

// SanitizeTags strips characters remote endpoints refuse from every
// user-visible string in the tree.
func SanitizeTags(tags []Tag) []Tag {
	out := CloneTags(tags)
	for i := range out {
		out[i].TagName = util.SanitizeContent(out[i].TagName)
		for j := range out[i].GroupList {
			g := &out[i].GroupList[j]
			g.GroupName = util.SanitizeContent(g.GroupName)
			for k := range g.TabList {
				tab := &g.TabList[k]
				tab.Title = util.SanitizeContent(tab.Title)
				tab.URL = util.SanitizeContent(tab.URL)
				tab.FavIconURL = util.SanitizeContent(tab.FavIconURL)
			}
		}
	}
	return out
}
