// Package codec converts between the tag tree and the NiceTab, OneTab and
// KepTab text formats.
package codec

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nicetab/api/internal/model"
)

type Format string

const (
	NiceTab Format = "nicetab"
	OneTab  Format = "onetab"
	KepTab  Format = "keptab"
)

var ErrInvalidFormat = errors.New("invalid import format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case NiceTab, OneTab, KepTab:
		return f, nil
	case "":
		return NiceTab, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, s)
}

// Parse decodes content into tags. Ids are left empty; the tree assigns them
// on import.
func Parse(format Format, content string) ([]model.Tag, error) {
	var (
		tags []model.Tag
		err  error
	)
	switch format {
	case NiceTab:
		tags, err = parseNiceTab(content)
	case OneTab:
		tags, err = parseOneTab(content)
	case KepTab:
		tags, err = parseKepTab(content)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	return tags, nil
}

func Serialize(format Format, tags []model.Tag) (string, error) {
	exported := model.ExportTags(tags)
	switch format {
	case NiceTab:
		data, err := json.MarshalIndent(exported, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize nicetab: %w", err)
		}
		return string(data), nil
	case OneTab:
		return serializeOneTab(exported), nil
	case KepTab:
		return serializeKepTab(exported)
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, format)
}

func parseNiceTab(content string) ([]model.Tag, error) {
	var tags []model.Tag
	if err := json.Unmarshal([]byte(content), &tags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	for i := range tags {
		if tags[i].GroupList == nil {
			tags[i].GroupList = []model.Group{}
		}
		for j := range tags[i].GroupList {
			g := &tags[i].GroupList[j]
			if g.TabList == nil {
				g.TabList = []model.Tab{}
			}
			g.TabList = keepWithURL(g.TabList)
		}
	}
	return model.ExportTags(tags), nil
}

// parseOneTab reads "url | title" lines. A blank line closes the current
// group; a line without a separator uses the url as title.
func parseOneTab(content string) ([]model.Tag, error) {
	var groups []model.Group
	var current []model.Tab
	flush := func() {
		if len(current) > 0 {
			groups = append(groups, model.Group{GroupName: model.UnnamedGroup, TabList: current})
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		url, title, found := strings.Cut(line, "|")
		url = strings.TrimSpace(url)
		title = strings.TrimSpace(title)
		if !found || title == "" {
			title = url
		}
		if url == "" {
			continue
		}
		current = append(current, model.Tab{Title: title, URL: url})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	flush()
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no tabs found", ErrInvalidFormat)
	}
	return []model.Tag{{TagName: model.UnnamedTag, GroupList: groups}}, nil
}

func serializeOneTab(tags []model.Tag) string {
	var blocks []string
	for _, tag := range tags {
		for _, g := range tag.GroupList {
			if len(g.TabList) == 0 {
				continue
			}
			lines := make([]string, len(g.TabList))
			for i, tab := range g.TabList {
				lines[i] = tab.URL + " | " + tab.Title
			}
			blocks = append(blocks, strings.Join(lines, "\n"))
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

type kepGroup struct {
	Title string   `json:"title"`
	Tabs  []kepTab `json:"tabs"`
	Time  int64    `json:"time,omitempty"`
	Lock  bool     `json:"lock,omitempty"`
	Star  bool     `json:"star,omitempty"`
}

type kepTab struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	FavIcon string `json:"favIconUrl,omitempty"`
}

func parseKepTab(content string) ([]model.Tag, error) {
	var groups []kepGroup
	if err := json.Unmarshal([]byte(content), &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	tag := model.Tag{TagName: model.UnnamedTag, GroupList: []model.Group{}}
	for _, kg := range groups {
		g := model.Group{GroupName: kg.Title, IsLocked: kg.Lock, IsStarred: kg.Star, TabList: []model.Tab{}}
		if g.GroupName == "" {
			g.GroupName = model.UnnamedGroup
		}
		for _, kt := range kg.Tabs {
			if kt.URL == "" {
				continue
			}
			title := kt.Title
			if title == "" {
				title = kt.URL
			}
			g.TabList = append(g.TabList, model.Tab{Title: title, URL: kt.URL, FavIconURL: kt.FavIcon})
		}
		tag.GroupList = append(tag.GroupList, g)
	}
	return []model.Tag{tag}, nil
}

func serializeKepTab(tags []model.Tag) (string, error) {
	groups := []kepGroup{}
	for _, tag := range tags {
		for _, g := range tag.GroupList {
			kg := kepGroup{Title: g.GroupName, Lock: g.IsLocked, Star: g.IsStarred, Tabs: []kepTab{}}
			for _, tab := range g.TabList {
				kg.Tabs = append(kg.Tabs, kepTab{URL: tab.URL, Title: tab.Title, FavIcon: tab.FavIconURL})
			}
			groups = append(groups, kg)
		}
	}
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize keptab: %w", err)
	}
	return string(data), nil
}

func keepWithURL(tabs []model.Tab) []model.Tab {
	out := tabs[:0]
	for _, tab := range tabs {
		if tab.URL != "" {
			out = append(out, tab)
		}
	}
	return out
}
