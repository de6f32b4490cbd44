package model

import (
	"time"

	"nicetab/api/internal/util"
)

const (
	StagingTagName = "Staging Area"
	UnnamedGroup   = "Unnamed Group"
	UnnamedTag     = "Unnamed Tag"

	createTimeLayout = "2006-01-02 15:04"
)

// Tab is a saved {title, url, favicon} snapshot. Dedup identity is URL.
type Tab struct {
	TabID      string `json:"tabId,omitempty"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	FavIconURL string `json:"favIconUrl,omitempty"`
}

// Group is a named cluster of tabs inside a tag.
type Group struct {
	GroupID    string `json:"groupId,omitempty"`
	GroupName  string `json:"groupName"`
	CreateTime string `json:"createTime,omitempty"`
	TabList    []Tab  `json:"tabList"`
	IsLocked   bool   `json:"isLocked,omitempty"`
	IsStarred  bool   `json:"isStarred,omitempty"`
}

// Tag is a top-level category. Exactly one tag carries Static (the staging area).
type Tag struct {
	TagID     string  `json:"tagId,omitempty"`
	TagName   string  `json:"tagName"`
	GroupList []Group `json:"groupList"`
	IsLocked  bool    `json:"isLocked,omitempty"`
	IsStarred bool    `json:"isStarred,omitempty"`
	Static    bool    `json:"static,omitempty"`
}

type CountInfo struct {
	TagCount   int `json:"tagCount"`
	GroupCount int `json:"groupCount"`
	TabCount   int `json:"tabCount"`
}

// TabSnapshot is what the browser side hands over when tabs are sent to the
// staging area. NativeGroupID <= 0 means the tab was not in a browser group.
type TabSnapshot struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	FavIconURL    string `json:"favIconUrl,omitempty"`
	NativeGroupID int    `json:"nativeGroupId,omitempty"`
}

var now = time.Now

func CreateTime() string {
	return now().Format(createTimeLayout)
}

func NewTab(title, url, favIconURL string) Tab {
	return Tab{TabID: util.NewID(""), Title: title, URL: url, FavIconURL: favIconURL}
}

func (s TabSnapshot) Tab() Tab {
	return NewTab(s.Title, s.URL, s.FavIconURL)
}

func NewGroup(name string, tabs []Tab) Group {
	if name == "" {
		name = UnnamedGroup
	}
	if tabs == nil {
		tabs = []Tab{}
	}
	return Group{GroupID: util.NewID(""), GroupName: name, CreateTime: CreateTime(), TabList: tabs}
}

func NewTag(name string) Tag {
	return Tag{TagID: util.NewID(""), TagName: name, GroupList: []Group{}}
}

func NewStagingTag() Tag {
	tag := NewTag(StagingTagName)
	tag.Static = true
	return tag
}

func Count(tags []Tag) CountInfo {
	info := CountInfo{TagCount: len(tags)}
	for _, tag := range tags {
		info.GroupCount += len(tag.GroupList)
		for _, group := range tag.GroupList {
			info.TabCount += len(group.TabList)
		}
	}
	return info
}

// URLs lists the tab urls of a group in order.
func (g Group) URLs() []string {
	urls := make([]string, len(g.TabList))
	for i, tab := range g.TabList {
		urls[i] = tab.URL
	}
	return urls
}
