package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"nicetab/api/internal/model"
)

func TestParseOneTabBlankLineStartsNewGroup(t *testing.T) {
	tags, err := Parse(OneTab, "https://a.com | A\n\nhttps://b.com | B\n")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Len(t, tags[0].GroupList, 2)
	require.Equal(t, []model.Tab{{Title: "A", URL: "https://a.com"}}, tags[0].GroupList[0].TabList)
	require.Equal(t, []model.Tab{{Title: "B", URL: "https://b.com"}}, tags[0].GroupList[1].TabList)
}

func TestParseOneTabEdgeCases(t *testing.T) {
	tags, err := Parse(OneTab, "https://a.com\nhttps://b.com | B | with pipe\n\n\n\r\nhttps://c.com |  \n")
	require.NoError(t, err)
	groups := tags[0].GroupList
	require.Len(t, groups, 2)
	require.Equal(t, "https://a.com", groups[0].TabList[0].Title)
	require.Equal(t, "B | with pipe", groups[0].TabList[1].Title)
	require.Equal(t, "https://c.com", groups[1].TabList[0].Title)

	_, err = Parse(OneTab, "\n\n")
	require.True(t, errors.Is(err, ErrInvalidFormat))
}

func TestOneTabRoundTrip(t *testing.T) {
	in := "https://a.com | A\nhttps://b.com | B\n\nhttps://c.com | C\n"
	tags, err := Parse(OneTab, in)
	require.NoError(t, err)
	out, err := Serialize(OneTab, tags)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestNiceTabRoundTrip(t *testing.T) {
	tags := []model.Tag{
		{TagID: "1", TagName: model.StagingTagName, Static: true, GroupList: []model.Group{}},
		{TagID: "2", TagName: "work", IsStarred: true, GroupList: []model.Group{
			{GroupID: "g", GroupName: "docs", CreateTime: "2024-01-01 10:00", IsLocked: true, TabList: []model.Tab{
				{TabID: "t", Title: "A", URL: "https://a.com", FavIconURL: "https://a.com/favicon.ico"},
			}},
		}},
	}
	out, err := Serialize(NiceTab, tags)
	require.NoError(t, err)
	require.NotContains(t, out, "tagId")
	require.NotContains(t, out, "createTime")

	parsed, err := Parse(NiceTab, out)
	require.NoError(t, err)
	require.Equal(t, model.ExportTags(tags), parsed)
}

func TestParseNiceTabRejectsGarbage(t *testing.T) {
	_, err := Parse(NiceTab, "{not json")
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestKepTab(t *testing.T) {
	in := `[{"title":"Reading","lock":true,"tabs":[{"url":"https://a.com","title":"A"},{"url":"","title":"skip"}]},{"title":"","tabs":[{"url":"https://b.com"}]}]`
	tags, err := Parse(KepTab, in)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	groups := tags[0].GroupList
	require.Equal(t, "Reading", groups[0].GroupName)
	require.True(t, groups[0].IsLocked)
	require.Len(t, groups[0].TabList, 1)
	require.Equal(t, model.UnnamedGroup, groups[1].GroupName)
	require.Equal(t, "https://b.com", groups[1].TabList[0].Title)

	out, err := Serialize(KepTab, tags)
	require.NoError(t, err)
	again, err := Parse(KepTab, out)
	require.NoError(t, err)
	require.Equal(t, tags, again)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("OneTab")
	require.NoError(t, err)
	require.Equal(t, OneTab, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, NiceTab, f)
	_, err = ParseFormat("csv")
	require.ErrorIs(t, err, ErrInvalidFormat)
}
