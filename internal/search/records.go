package search

import "nicetab/api/internal/model"

// Records flattens the tree into one record per tab. Tabs without an id
// cannot be addressed and are skipped.
func Records(tags []model.Tag) []TabRecord {
	var out []TabRecord
	for _, tag := range tags {
		for _, group := range tag.GroupList {
			for _, tab := range group.TabList {
				if tab.TabID == "" {
					continue
				}
				out = append(out, TabRecord{
					ID:        tab.TabID,
					TagID:     tag.TagID,
					TagName:   tag.TagName,
					GroupID:   group.GroupID,
					GroupName: group.GroupName,
					Title:     tab.Title,
					URL:       tab.URL,
				})
			}
		}
	}
	return out
}
