package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"nicetab/api/internal/model"
	"nicetab/api/internal/tree"
)

// Command is one mutation of the tree, the recycle bin or the settings.
// The set is closed; Execute switches over every member.
type Command interface {
	command()
}

type AddTag struct {
	TagName string `json:"tagName"`
}

type UpdateTag struct {
	TagID    string  `json:"tagId"`
	TagName  *string `json:"tagName,omitempty"`
	IsLocked *bool   `json:"isLocked,omitempty"`
}

type ToggleTagStarred struct {
	TagID     string `json:"tagId"`
	IsStarred bool   `json:"isStarred"`
}

type RemoveTag struct {
	TagID string `json:"tagId"`
}

type CreateTabGroup struct {
	TagID     string      `json:"tagId"`
	GroupName string      `json:"groupName"`
	TabList   []model.Tab `json:"tabList"`
}

type UpdateTabGroup struct {
	TagID     string  `json:"tagId"`
	GroupID   string  `json:"groupId"`
	GroupName *string `json:"groupName,omitempty"`
	IsLocked  *bool   `json:"isLocked,omitempty"`
}

type RemoveTabGroup struct {
	TagID   string `json:"tagId"`
	GroupID string `json:"groupId"`
}

type ToggleTabGroupStarred struct {
	TagID     string `json:"tagId"`
	GroupID   string `json:"groupId"`
	IsStarred bool   `json:"isStarred"`
}

type TabGroupMove struct {
	TagID     string         `json:"tagId"`
	GroupID   string         `json:"groupId"`
	Direction tree.Direction `json:"direction"`
}

type TabGroupMoveThrough struct {
	tree.MoveGroupParams
}

type AllTabGroupsMoveThrough struct {
	SourceTagID string `json:"sourceTagId"`
	TargetTagID string `json:"targetTagId"`
	AutoMerge   bool   `json:"autoMerge"`
}

type CreateTabs struct {
	Tabs           []model.TabSnapshot `json:"tabs"`
	CreateNewGroup bool                `json:"createNewGroup"`
}

type RemoveTabs struct {
	TagID   string   `json:"tagId"`
	GroupID string   `json:"groupId"`
	TabIDs  []string `json:"tabIds"`
}

type UpdateTab struct {
	TagID   string    `json:"tagId"`
	GroupID string    `json:"groupId"`
	Tab     model.Tab `json:"tab"`
}

type OnTabDrop struct {
	tree.TabDropParams
}

type TabMoveThrough struct {
	tree.TabMoveParams
}

type ImportTags struct {
	TagList []model.Tag     `json:"tagList"`
	Mode    tree.ImportMode `json:"mode"`
}

type ClearTags struct{}

type UpdateSettings struct {
	Settings model.Settings `json:"settings"`
}

type RecoverTags struct {
	TagIDs []string `json:"tagIds"`
}

type RecoverTabGroup struct {
	TagID   string `json:"tagId"`
	GroupID string `json:"groupId"`
}

type RecoverAll struct{}

type PurgeTag struct {
	TagID string `json:"tagId"`
}

type PurgeTabGroup struct {
	TagID   string `json:"tagId"`
	GroupID string `json:"groupId"`
}

type ClearRecycleBin struct{}

func (AddTag) command()                  {}
func (UpdateTag) command()               {}
func (ToggleTagStarred) command()        {}
func (RemoveTag) command()               {}
func (CreateTabGroup) command()          {}
func (UpdateTabGroup) command()          {}
func (RemoveTabGroup) command()          {}
func (ToggleTabGroupStarred) command()   {}
func (TabGroupMove) command()            {}
func (TabGroupMoveThrough) command()     {}
func (AllTabGroupsMoveThrough) command() {}
func (CreateTabs) command()              {}
func (RemoveTabs) command()              {}
func (UpdateTab) command()               {}
func (OnTabDrop) command()               {}
func (TabMoveThrough) command()          {}
func (ImportTags) command()              {}
func (ClearTags) command()               {}
func (UpdateSettings) command()          {}
func (RecoverTags) command()             {}
func (RecoverTabGroup) command()         {}
func (RecoverAll) command()              {}
func (PurgeTag) command()                {}
func (PurgeTabGroup) command()           {}
func (ClearRecycleBin) command()         {}

// Envelope is the wire form of a command.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var commandDecoders = map[string]func(json.RawMessage) (Command, error){
	"addTag":                  decodeAs[AddTag],
	"updateTag":               decodeAs[UpdateTag],
	"toggleTagStarred":        decodeAs[ToggleTagStarred],
	"removeTag":               decodeAs[RemoveTag],
	"createTabGroup":          decodeAs[CreateTabGroup],
	"updateTabGroup":          decodeAs[UpdateTabGroup],
	"removeTabGroup":          decodeAs[RemoveTabGroup],
	"toggleTabGroupStarred":   decodeAs[ToggleTabGroupStarred],
	"tabGroupMove":            decodeAs[TabGroupMove],
	"tabGroupMoveThrough":     decodeAs[TabGroupMoveThrough],
	"allTabGroupsMoveThrough": decodeAs[AllTabGroupsMoveThrough],
	"createTabs":              decodeAs[CreateTabs],
	"removeTabs":              decodeAs[RemoveTabs],
	"updateTab":               decodeAs[UpdateTab],
	"onTabDrop":               decodeAs[OnTabDrop],
	"tabMoveThrough":          decodeAs[TabMoveThrough],
	"importTags":              decodeAs[ImportTags],
	"clearTags":               decodeAs[ClearTags],
	"updateSettings":          decodeAs[UpdateSettings],
	"recoverTags":             decodeAs[RecoverTags],
	"recoverTabGroup":         decodeAs[RecoverTabGroup],
	"recoverAll":              decodeAs[RecoverAll],
	"purgeTag":                decodeAs[PurgeTag],
	"purgeTabGroup":           decodeAs[PurgeTabGroup],
	"clearRecycleBin":         decodeAs[ClearRecycleBin],
}

func decodeAs[T Command](raw json.RawMessage) (Command, error) {
	var cmd T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// DecodeCommand turns an envelope into its command.
func DecodeCommand(env Envelope) (Command, error) {
	decode, ok := commandDecoders[env.Type]
	if !ok {
		return nil, domainError(http.StatusBadRequest, "UNKNOWN_COMMAND", fmt.Sprintf("unknown command %q", env.Type), nil)
	}
	cmd, err := decode(env.Payload)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_PAYLOAD", err.Error(), map[string]string{"type": env.Type})
	}
	return cmd, nil
}

// Execute applies cmd. The result is the created tag or group, the saved
// settings, or nil.
func (s *Service) Execute(ctx context.Context, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case AddTag:
		return s.tree.AddTag(ctx, c.TagName)
	case UpdateTag:
		return nil, s.tree.UpdateTag(ctx, c.TagID, tree.TagPatch{TagName: c.TagName, IsLocked: c.IsLocked})
	case ToggleTagStarred:
		return nil, s.tree.ToggleTagStarred(ctx, c.TagID, c.IsStarred)
	case RemoveTag:
		return nil, s.tree.RemoveTag(ctx, c.TagID)
	case CreateTabGroup:
		return s.tree.CreateTabGroup(ctx, c.TagID, c.GroupName, c.TabList)
	case UpdateTabGroup:
		return nil, s.tree.UpdateTabGroup(ctx, c.TagID, c.GroupID, tree.GroupPatch{GroupName: c.GroupName, IsLocked: c.IsLocked})
	case RemoveTabGroup:
		return nil, s.tree.RemoveTabGroup(ctx, c.TagID, c.GroupID)
	case ToggleTabGroupStarred:
		return nil, s.tree.ToggleTabGroupStarred(ctx, c.TagID, c.GroupID, c.IsStarred)
	case TabGroupMove:
		if c.Direction != tree.Up && c.Direction != tree.Down {
			return nil, domainError(http.StatusBadRequest, "INVALID_DIRECTION", "direction must be up or down", nil)
		}
		return nil, s.tree.TabGroupMove(ctx, c.TagID, c.GroupID, c.Direction)
	case TabGroupMoveThrough:
		return nil, s.tree.TabGroupMoveThrough(ctx, c.MoveGroupParams)
	case AllTabGroupsMoveThrough:
		return nil, s.tree.AllTabGroupsMoveThrough(ctx, c.SourceTagID, c.TargetTagID, c.AutoMerge)
	case CreateTabs:
		return nil, s.tree.CreateTabs(ctx, c.Tabs, c.CreateNewGroup)
	case RemoveTabs:
		return nil, s.tree.RemoveTabs(ctx, c.TagID, c.GroupID, c.TabIDs)
	case UpdateTab:
		return nil, s.tree.UpdateTab(ctx, c.TagID, c.GroupID, c.Tab)
	case OnTabDrop:
		return nil, s.tree.OnTabDrop(ctx, c.TabDropParams)
	case TabMoveThrough:
		return nil, s.tree.TabMoveThrough(ctx, c.TabMoveParams)
	case ImportTags:
		mode, err := tree.ParseImportMode(string(c.Mode))
		if err != nil {
			return nil, domainError(http.StatusBadRequest, "INVALID_MODE", err.Error(), nil)
		}
		return nil, s.tree.ImportTags(ctx, c.TagList, mode)
	case ClearTags:
		return nil, s.tree.Clear(ctx)
	case UpdateSettings:
		return s.settings.Update(ctx, c.Settings)
	case RecoverTags:
		return nil, s.bin.RecoverTags(ctx, c.TagIDs)
	case RecoverTabGroup:
		return nil, s.bin.RecoverTabGroup(ctx, c.TagID, c.GroupID)
	case RecoverAll:
		return nil, s.bin.RecoverAll(ctx)
	case PurgeTag:
		return nil, s.bin.RemoveTag(ctx, c.TagID)
	case PurgeTabGroup:
		return nil, s.bin.RemoveTabGroup(ctx, c.TagID, c.GroupID)
	case ClearRecycleBin:
		return nil, s.bin.Clear(ctx)
	}
	return nil, domainError(http.StatusBadRequest, "UNKNOWN_COMMAND", fmt.Sprintf("unsupported command %T", cmd), nil)
}
