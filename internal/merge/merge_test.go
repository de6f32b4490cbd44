package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nicetab/api/internal/model"
)

func tab(url string) model.Tab {
	return model.Tab{TabID: url, Title: url, URL: url}
}

func group(name string, starred bool, urls ...string) model.Group {
	tabs := make([]model.Tab, 0, len(urls))
	for _, u := range urls {
		tabs = append(tabs, tab(u))
	}
	return model.Group{GroupID: "g-" + name, GroupName: name, TabList: tabs, IsStarred: starred}
}

func names(groups []model.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.GroupName
	}
	return out
}

func TestMergeTabsUnionKeepsTargetOrder(t *testing.T) {
	got := MergeTabs(
		[]model.Tab{tab("a"), tab("b")},
		[]model.Tab{tab("c"), tab("a"), tab("d"), tab("c")},
	)
	urls := make([]string, len(got))
	for i, t := range got {
		urls[i] = t.URL
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, urls)
}

func TestMergeGroupsAndTabsFoldsByName(t *testing.T) {
	target := []model.Group{group("s", true, "1"), group("docs", false, "a")}
	insert := []model.Group{group("docs", true, "b"), group("new", false, "x"), group("pinned", true, "y")}

	got := MergeGroupsAndTabs(target, insert, model.UnnamedGroup)
	require.Equal(t, []string{"s", "pinned", "new", "docs"}, names(got))
	docs := got[3]
	require.False(t, docs.IsStarred, "existing group keeps its own flags")
	require.Equal(t, []string{"a", "b"}, docs.URLs())
	require.True(t, model.StarredFirst(got))
}

func TestMergeGroupListNewUnstarredKeepInsertOrder(t *testing.T) {
	target := []model.Group{group("old", false, "a")}
	insert := []model.Group{group("n1", false, "1"), group("n2", false, "2")}
	got := MergeGroupsAndTabs(target, insert, model.UnnamedGroup)
	require.Equal(t, []string{"n1", "n2", "old"}, names(got))
}

func TestMergeGroupsAndTabsNeverFoldsSentinelByName(t *testing.T) {
	target := []model.Group{group(model.UnnamedGroup, false, "a")}
	insert := []model.Group{group(model.UnnamedGroup, false, "b"), group(model.UnnamedGroup, false, "a")}

	got := MergeGroupsAndTabs(target, insert, model.UnnamedGroup)
	require.Len(t, got, 2)
	require.Equal(t, []string{"b"}, got[0].URLs())
	require.Equal(t, []string{"a"}, got[1].URLs())
}

func TestMergeGroupsAndTabsKeepsDuplicateUnnamedGroups(t *testing.T) {
	insert := []model.Group{group(model.UnnamedGroup, false, "a"), group(model.UnnamedGroup, false, "a")}

	got := MergeGroupsAndTabs(nil, insert, model.UnnamedGroup)
	require.Len(t, got, 2)

	target := []model.Group{group(model.UnnamedGroup, false, "a")}
	got = MergeGroupsAndTabs(target, insert, model.UnnamedGroup)
	require.Len(t, got, 2, "one incoming group pairs with the target, the other survives")
	require.Equal(t, []string{"a"}, got[0].URLs())
	require.Equal(t, []string{"a"}, got[1].URLs())

	again := MergeGroupsAndTabs(got, insert, model.UnnamedGroup)
	require.Equal(t, got, again)
}

func TestMergeTagsKeepsDuplicateUnnamedTags(t *testing.T) {
	unnamed := model.Tag{TagName: model.UnnamedTag, GroupList: []model.Group{group("docs", false, "d")}}

	got := MergeTags(nil, []model.Tag{unnamed, unnamed})
	require.Len(t, got, 2)

	again := MergeTags(got, []model.Tag{unnamed, unnamed})
	require.Len(t, again, 2)
}

func TestMergeIsIdempotent(t *testing.T) {
	a := []model.Group{
		group("s", true, "1", "2"),
		group("docs", false, "a", "b"),
		group(model.UnnamedGroup, false, "u"),
	}
	b := []model.Group{
		group("docs", false, "b", "c"),
		group("fresh", true, "f"),
		group("later", false, "l"),
		group(model.UnnamedGroup, false, "v"),
		group(model.UnnamedGroup, false, "u"),
	}
	ab := MergeGroupsAndTabs(a, b, model.UnnamedGroup)
	again := MergeGroupsAndTabs(a, ab, model.UnnamedGroup)
	require.Equal(t, ab, again)

	twice := MergeGroupsAndTabs(ab, b, model.UnnamedGroup)
	require.Equal(t, ab, twice)
}

func TestMergeTagsMatchesStaticAndNames(t *testing.T) {
	target := []model.Tag{
		{TagID: "0", TagName: model.StagingTagName, Static: true, GroupList: []model.Group{group("inbox", false, "a")}},
		{TagID: "1", TagName: "work", GroupList: []model.Group{group("docs", false, "d")}},
	}
	insert := []model.Tag{
		{TagName: "Other staging name", Static: true, GroupList: []model.Group{group("inbox", false, "b")}},
		{TagName: "work", GroupList: []model.Group{group("docs", false, "e")}},
		{TagName: "home", IsStarred: true},
	}
	got := MergeTags(target, insert)
	require.Len(t, got, 3)
	require.True(t, got[0].Static)
	require.Equal(t, model.StagingTagName, got[0].TagName)
	require.Equal(t, []string{"a", "b"}, got[0].GroupList[0].URLs())
	require.Equal(t, "home", got[1].TagName, "starred tag lands after the static tag")
	require.Equal(t, "work", got[2].TagName)
	require.Equal(t, []string{"d", "e"}, got[2].GroupList[0].URLs())
	require.True(t, model.TagsStarredFirst(got))
}

func TestMergeTagsByID(t *testing.T) {
	live := []model.Tag{
		{TagID: "0", Static: true, TagName: model.StagingTagName},
		{TagID: "t1", TagName: "renamed", IsLocked: true, GroupList: []model.Group{
			{GroupID: "g1", GroupName: "docs", TabList: []model.Tab{tab("new")}},
		}},
	}
	recovered := []model.Tag{
		{TagID: "t1", TagName: "work", GroupList: []model.Group{
			{GroupID: "g1", GroupName: "docs", TabList: []model.Tab{tab("old"), tab("new")}},
			{GroupID: "g2", GroupName: "more", TabList: []model.Tab{tab("m")}},
		}},
		{TagID: "t2", TagName: "gone"},
	}
	got := MergeTagsByID(live, recovered)
	require.Len(t, got, 3)
	require.Equal(t, "t2", got[1].TagID)
	merged := got[2]
	require.Equal(t, "renamed", merged.TagName)
	require.True(t, merged.IsLocked)
	require.Len(t, merged.GroupList, 2)
	require.Equal(t, "g2", merged.GroupList[0].GroupID)
	require.Equal(t, []string{"new", "old"}, merged.GroupList[1].URLs())
}

func TestMergeTagsByIDPutsMissingParentAfterStaging(t *testing.T) {
	live := []model.Tag{
		{TagID: "0", Static: true, TagName: model.StagingTagName},
		{TagID: "s1", TagName: "pinned", IsStarred: true},
		{TagID: "t1", TagName: "plain"},
	}
	got := MergeTagsByID(live, []model.Tag{{TagID: "t2", TagName: "gone"}})
	require.Len(t, got, 4)
	require.Equal(t, []string{"0", "t2", "s1", "t1"}, []string{got[0].TagID, got[1].TagID, got[2].TagID, got[3].TagID})
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	target := []model.Group{group("docs", false, "a")}
	insert := []model.Group{group("docs", false, "b")}
	_ = MergeGroupsAndTabs(target, insert, model.UnnamedGroup)
	require.Equal(t, []string{"a"}, target[0].URLs())
	require.Equal(t, []string{"b"}, insert[0].URLs())
}
