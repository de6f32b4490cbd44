package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"nicetab/api/internal/codec"
	"nicetab/api/internal/history"
	"nicetab/api/internal/kv"
	"nicetab/api/internal/model"
	"nicetab/api/internal/recycle"
	"nicetab/api/internal/search"
	"nicetab/api/internal/settings"
	"nicetab/api/internal/syncer"
	"nicetab/api/internal/syncer/gist"
	"nicetab/api/internal/syncer/webdav"
	"nicetab/api/internal/tree"
)

// TabSource supplies the tabs currently open in a browser.
type TabSource interface {
	Capture(ctx context.Context) ([]model.TabSnapshot, error)
}

type Service struct {
	kv       kv.Store
	tree     *tree.Store
	bin      *recycle.Bin
	settings *settings.Store
	search   *search.Service
	history  *history.Service
	tabs     TabSource
	logger   zerolog.Logger

	registry      *syncer.Registry
	gistConfigs   *gist.ConfigStore
	webdavConfigs *webdav.ConfigStore
	// syncBase carries the options shared by every coordinator.
	syncBase      syncer.Options
	webdavResults *syncer.ResultLog
	webdavStatus  *syncer.StatusLog
	webdavOpts    []webdav.Option
}

func (s *Service) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// TagsView is the tree plus its counts.
type TagsView struct {
	TagList   []model.Tag     `json:"tagList"`
	CountInfo model.CountInfo `json:"countInfo"`
}

func (s *Service) Tags(ctx context.Context) (TagsView, error) {
	tags, err := s.tree.TagList(ctx)
	if err != nil {
		return TagsView{}, err
	}
	return TagsView{TagList: tags, CountInfo: model.Count(tags)}, nil
}

func (s *Service) CountInfo(ctx context.Context) (model.CountInfo, error) {
	return s.tree.CountInfo(ctx)
}

func (s *Service) RecycleBin(ctx context.Context) (TagsView, error) {
	tags, err := s.bin.List(ctx)
	if err != nil {
		return TagsView{}, err
	}
	return TagsView{TagList: tags, CountInfo: model.Count(tags)}, nil
}

func (s *Service) Settings(ctx context.Context) (model.Settings, error) {
	return s.settings.Get(ctx)
}

// Import parses content in format and imports it with mode.
func (s *Service) Import(ctx context.Context, format, mode, content string) (model.CountInfo, error) {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return model.CountInfo{}, err
	}
	m, err := tree.ParseImportMode(mode)
	if err != nil {
		return model.CountInfo{}, domainError(http.StatusBadRequest, "INVALID_MODE", err.Error(), nil)
	}
	tags, err := codec.Parse(f, content)
	if err != nil {
		return model.CountInfo{}, err
	}
	if err := s.tree.ImportTags(ctx, tags, m); err != nil {
		return model.CountInfo{}, fmt.Errorf("import tags: %w", err)
	}
	return s.tree.CountInfo(ctx)
}

func (s *Service) Export(ctx context.Context, format string) (string, error) {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return "", err
	}
	tags, err := s.tree.Export(ctx)
	if err != nil {
		return "", err
	}
	return codec.Serialize(f, tags)
}

// Capture files the tabs open in the browser into the staging area.
func (s *Service) Capture(ctx context.Context, createNewGroup bool) (model.CountInfo, error) {
	if s.tabs == nil {
		return model.CountInfo{}, domainError(http.StatusServiceUnavailable, "NO_TAB_SOURCE", "No browser tab source configured", nil)
	}
	snaps, err := s.tabs.Capture(ctx)
	if err != nil {
		return model.CountInfo{}, fmt.Errorf("capture tabs: %w", err)
	}
	if err := s.tree.CreateTabs(ctx, snaps, createNewGroup); err != nil {
		return model.CountInfo{}, err
	}
	return s.tree.CountInfo(ctx)
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

func (s *Service) History(ctx context.Context, limit int) ([]history.Commit, error) {
	return s.history.History(ctx, limit)
}

// Snapshot records the current tree in the history journal.
func (s *Service) Snapshot(ctx context.Context, message string) (string, error) {
	tags, err := s.tree.Export(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(message) == "" {
		message = "manual snapshot"
	}
	return s.history.Snapshot(ctx, tags, message)
}

// RestoreSnapshot replaces the tree with the snapshot at hash. The current
// tree is snapshotted first.
func (s *Service) RestoreSnapshot(ctx context.Context, hash string) (model.CountInfo, error) {
	tags, err := s.history.Get(ctx, hash)
	if err != nil {
		return model.CountInfo{}, err
	}
	if _, err := s.Snapshot(ctx, "before restore of "+hash); err != nil {
		return model.CountInfo{}, err
	}
	if err := s.tree.ImportTags(ctx, tags, tree.ImportOverride); err != nil {
		return model.CountInfo{}, err
	}
	return s.tree.CountInfo(ctx)
}
