package tree

import (
	"context"

	"nicetab/api/internal/model"
)

type TagPatch struct {
	TagName  *string `json:"tagName,omitempty"`
	IsLocked *bool   `json:"isLocked,omitempty"`
}

// AddTag creates an empty tag right after the staging area.
func (s *Store) AddTag(ctx context.Context, name string) (model.Tag, error) {
	tag := model.NewTag(name)
	_, err := s.mutate(ctx, func(tx *txn) error {
		tx.insertNewTag(tag)
		return nil
	})
	if err != nil {
		return model.Tag{}, err
	}
	return tag, nil
}

func (s *Store) UpdateTag(ctx context.Context, tagID string, patch TagPatch) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti := tx.tagIndex(tagID)
		if ti < 0 {
			return nil
		}
		if patch.TagName != nil && !tx.tags[ti].Static {
			tx.tags[ti].TagName = *patch.TagName
		}
		if patch.IsLocked != nil {
			tx.tags[ti].IsLocked = *patch.IsLocked
		}
		return nil
	})
	return err
}

// ToggleTagStarred moves a tag to the end of the starred block or the front
// of the unstarred block. The staging area cannot be starred.
func (s *Store) ToggleTagStarred(ctx context.Context, tagID string, starred bool) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti := tx.tagIndex(tagID)
		if ti < 0 || tx.tags[ti].Static || tx.tags[ti].IsStarred == starred {
			return nil
		}
		tag := tx.tags[ti]
		tx.tags = model.RemoveTagAt(tx.tags, ti)
		tag.IsStarred = starred
		tx.tags = model.InsertTagAt(tx.tags, model.FirstUnstarredTag(tx.tags), tag)
		return nil
	})
	return err
}

// RemoveTag drops a tag. Its non-empty groups go to the recycle bin.
func (s *Store) RemoveTag(ctx context.Context, tagID string) error {
	_, err := s.mutate(ctx, func(tx *txn) error {
		ti := tx.tagIndex(tagID)
		if ti < 0 || tx.tags[ti].Static {
			return nil
		}
		tag := tx.tags[ti]
		tx.discardTag(tag)
		tx.tags = model.RemoveTagAt(tx.tags, ti)
		return nil
	})
	return err
}
