package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTags() []Tag {
	staging := NewStagingTag()
	staging.GroupList = []Group{NewGroup("inbox", []Tab{NewTab("A", "https://a.com", "")})}
	work := NewTag("work")
	work.GroupList = []Group{
		NewGroup("docs", []Tab{NewTab("B", "https://b.com", ""), NewTab("C", "https://c.com", "")}),
		NewGroup("", nil),
	}
	return []Tag{staging, work}
}

func TestCount(t *testing.T) {
	info := Count(sampleTags())
	require.Equal(t, CountInfo{TagCount: 2, GroupCount: 3, TabCount: 3}, info)
}

func TestNewGroupDefaults(t *testing.T) {
	g := NewGroup("", nil)
	require.Equal(t, UnnamedGroup, g.GroupName)
	require.NotEmpty(t, g.GroupID)
	require.NotEmpty(t, g.CreateTime)
	require.NotNil(t, g.TabList)
}

func TestExportTagsStripsVolatileFields(t *testing.T) {
	tags := sampleTags()
	exported := ExportTags(tags)
	for _, tag := range exported {
		require.Empty(t, tag.TagID)
		for _, g := range tag.GroupList {
			require.Empty(t, g.GroupID)
			require.Empty(t, g.CreateTime)
			for _, tab := range g.TabList {
				require.Empty(t, tab.TabID)
			}
		}
	}
	require.NotEmpty(t, tags[0].TagID, "export must not mutate its input")
	require.Equal(t, tags[1].GroupList[0].URLs(), exported[1].GroupList[0].URLs())
}

func TestRegenerateIDs(t *testing.T) {
	tags := sampleTags()
	regenerated := RegenerateIDs(ExportTags(tags))
	require.Len(t, regenerated, 2)
	require.NotEmpty(t, regenerated[0].TagID)
	require.NotEqual(t, tags[0].TagID, regenerated[0].TagID)
	require.NotEmpty(t, regenerated[1].GroupList[0].TabList[0].TabID)
	require.NotEmpty(t, regenerated[1].GroupList[0].CreateTime)
}

func TestInsertGroupKeepsStarredFirst(t *testing.T) {
	starred := NewGroup("s1", nil)
	starred.IsStarred = true
	groups := []Group{starred, NewGroup("u1", nil)}

	groups = InsertGroup(groups, NewGroup("u2", nil))
	require.Equal(t, "u2", groups[1].GroupName)

	other := NewGroup("s2", nil)
	other.IsStarred = true
	groups = InsertGroup(groups, other)
	require.Equal(t, "s2", groups[0].GroupName)
	require.True(t, StarredFirst(groups))
}

func TestStarredFirst(t *testing.T) {
	a := Group{GroupName: "a", IsStarred: true}
	b := Group{GroupName: "b"}
	require.True(t, StarredFirst([]Group{a, b}))
	require.False(t, StarredFirst([]Group{b, a}))
	require.True(t, StarredFirst(nil))
}

func TestTagsStarredFirstIgnoresStatic(t *testing.T) {
	staging := Tag{TagName: StagingTagName, Static: true}
	starred := Tag{TagName: "s", IsStarred: true}
	plain := Tag{TagName: "p"}
	require.True(t, TagsStarredFirst([]Tag{staging, starred, plain}))
	require.False(t, TagsStarredFirst([]Tag{staging, plain, starred}))
	require.Equal(t, 2, FirstUnstarredTag([]Tag{staging, starred, plain}))
}

func TestSanitizeTags(t *testing.T) {
	tags := []Tag{{TagName: "fun \U0001F389", GroupList: []Group{{GroupName: "g", TabList: []Tab{{Title: "x\x07y", URL: "https://a.com"}}}}}}
	out := SanitizeTags(tags)
	require.Equal(t, "fun ", out[0].TagName)
	require.Equal(t, "xy", out[0].GroupList[0].TabList[0].Title)
	require.Equal(t, "fun \U0001F389", tags[0].TagName)
}

func TestSettingsAccessors(t *testing.T) {
	s := Settings{SettingAutoSyncInterval: float64(15), SettingAllowDuplicateTabs: "true"}
	require.Equal(t, 15, s.Int(SettingAutoSyncInterval))
	require.True(t, s.Bool(SettingAllowDuplicateTabs))
	require.True(t, s.Bool(SettingDeleteUnlockedEmptyGroup))
	require.Equal(t, "en", s.String(SettingLanguage))
	require.Equal(t, "auto", s.String(SettingAutoSyncType))
}

func TestMergeSettingsKeepsDeviceLocalKeys(t *testing.T) {
	local := Settings{SettingLanguage: "zh", SettingAutoSync: false}
	remote := Settings{SettingLanguage: "en", SettingAutoSync: true, SettingAutoSyncInterval: 5, SettingAllowDuplicateTabs: true}

	merged := MergeSettings(local, remote)
	require.Equal(t, "zh", merged[SettingLanguage])
	require.Equal(t, false, merged[SettingAutoSync])
	require.NotContains(t, merged, SettingAutoSyncInterval)
	require.Equal(t, true, merged[SettingAllowDuplicateTabs])

	adopted := AdoptRemoteSettings(local, remote)
	require.Equal(t, "en", adopted[SettingLanguage])
	require.Equal(t, false, adopted[SettingAutoSync])
}
