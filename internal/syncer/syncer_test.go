package syncer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nicetab/api/internal/kv"
	"nicetab/api/internal/model"
	"nicetab/api/internal/settings"
	"nicetab/api/internal/tree"
)

type fakeBackend struct {
	mu       sync.Mutex
	remote   RemoteContent
	fetchErr error
	pushErr  error
	fetches  atomic.Int32
	pushes   []RemoteContent
	gate     chan struct{}
	entered  chan struct{}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Fetch(ctx context.Context) (RemoteContent, error) {
	f.fetches.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return RemoteContent{}, f.fetchErr
	}
	return f.remote, nil
}

func (f *fakeBackend) Push(_ context.Context, content RemoteContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, content)
	f.remote = content
	return nil
}

type fakeBackup struct {
	snapshots [][]model.Tag
}

func (f *fakeBackup) Snapshot(_ context.Context, tags []model.Tag, _ string) (string, error) {
	f.snapshots = append(f.snapshots, tags)
	return fmt.Sprintf("hash-%d", len(f.snapshots)), nil
}

type chanNotifier chan Event

func (c chanNotifier) Publish(_ context.Context, e Event) error {
	c <- e
	return nil
}

type harness struct {
	tree     *tree.Store
	settings *settings.Store
	backend  *fakeBackend
	backup   *fakeBackup
	coord    *Coordinator
	results  *ResultLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := kv.NewMemory()
	st := settings.New(store)
	tr := tree.New(store, st, zerolog.Nop())
	h := &harness{
		tree:     tr,
		settings: st,
		backend:  &fakeBackend{},
		backup:   &fakeBackup{},
		results:  NewResultLog(store, kv.KeySyncResult),
	}
	h.coord = NewCoordinator(Options{
		ID:       "github",
		Backend:  h.backend,
		Tree:     tr,
		Settings: st,
		Results:  h.results,
		Status:   NewStatusLog(store, kv.KeySyncStatus),
		Backup:   h.backup,
		Logger:   zerolog.Nop(),
		AutoSync: true,
	})
	return h
}

func (h *harness) seedLocal(t *testing.T, tagName, groupName string, urls ...string) {
	t.Helper()
	ctx := context.Background()
	tag, err := h.tree.AddTag(ctx, tagName)
	require.NoError(t, err)
	tabs := make([]model.Tab, len(urls))
	for i, u := range urls {
		tabs[i] = model.Tab{Title: u, URL: u}
	}
	_, err = h.tree.CreateTabGroup(ctx, tag.TagID, groupName, tabs)
	require.NoError(t, err)
}

func remoteTags(tagName, groupName string, urls ...string) []model.Tag {
	tabs := make([]model.Tab, len(urls))
	for i, u := range urls {
		tabs[i] = model.Tab{Title: u, URL: u}
	}
	return []model.Tag{
		{TagName: model.StagingTagName, Static: true, GroupList: []model.Group{}},
		{TagName: tagName, GroupList: []model.Group{{GroupName: groupName, TabList: tabs}}},
	}
}

func urlsIn(tags []model.Tag, tagName string) []string {
	for _, tag := range tags {
		if tag.TagName != tagName {
			continue
		}
		var urls []string
		for _, g := range tag.GroupList {
			for _, tab := range g.TabList {
				urls = append(urls, tab.URL)
			}
		}
		return urls
	}
	return nil
}

func TestForcePushUploadsSanitizedLocalState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLocal(t, "work \U0001F680", "docs", "https://a.com")
	_, err := h.settings.Update(ctx, model.Settings{model.SettingLanguage: "zh"})
	require.NoError(t, err)

	result, started := h.coord.Start(ctx, ManualPushForce)
	require.True(t, started)
	require.Equal(t, Success, result.SyncResult)
	require.Equal(t, int32(0), h.backend.fetches.Load(), "force push never reads the remote")
	require.Len(t, h.backend.pushes, 1)
	pushed := h.backend.pushes[0]
	require.Equal(t, "work ", pushed.Tags[1].TagName)
	require.Empty(t, pushed.Tags[1].TagID)
	require.Equal(t, "zh", pushed.Settings[model.SettingLanguage])
}

func TestForcePullReplacesLocalTree(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLocal(t, "local", "mine", "https://local.com")
	_, err := h.settings.Update(ctx, model.Settings{model.SettingAutoSync: true, model.SettingLanguage: "en"})
	require.NoError(t, err)
	h.backend.remote = RemoteContent{
		Tags:     remoteTags("remote", "theirs", "https://remote.com"),
		Settings: model.Settings{model.SettingAutoSync: false, model.SettingLanguage: "zh"},
		Exists:   true,
	}

	result, started := h.coord.Start(ctx, ManualPullForce)
	require.True(t, started)
	require.Equal(t, Success, result.SyncResult, result.Reason)

	tags, err := h.tree.TagList(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Nil(t, urlsIn(tags, "local"))
	require.Equal(t, []string{"https://remote.com"}, urlsIn(tags, "remote"))
	require.Len(t, h.backup.snapshots, 1)
	require.Equal(t, []string{"https://local.com"}, urlsIn(h.backup.snapshots[0], "local"))

	raw, err := h.settings.Raw(ctx)
	require.NoError(t, err)
	require.Equal(t, "zh", raw[model.SettingLanguage])
	require.Equal(t, true, raw[model.SettingAutoSync], "auto sync stays device local")
	require.Empty(t, h.backend.pushes)
}

func TestForcePullWithoutRemoteFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLocal(t, "local", "mine", "https://local.com")

	result, started := h.coord.Start(ctx, ManualPullForce)
	require.True(t, started)
	require.Equal(t, Failed, result.SyncResult)
	require.Equal(t, FailureNotFound, result.Kind)

	tags, err := h.tree.TagList(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"https://local.com"}, urlsIn(tags, "local"))
}

func TestPullMergeCombinesWithoutPushing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLocal(t, "work", "docs", "https://a.com")
	h.backend.remote = RemoteContent{Tags: remoteTags("work", "docs", "https://b.com", "https://a.com"), Exists: true}

	result, _ := h.coord.Start(ctx, ManualPullMerge)
	require.Equal(t, Success, result.SyncResult)
	tags, err := h.tree.TagList(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.com", "https://b.com"}, urlsIn(tags, "work"))
	require.Empty(t, h.backend.pushes)
}

func TestPushMergePushesMergedState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLocal(t, "work", "docs", "https://a.com")
	h.backend.remote = RemoteContent{
		Tags:     remoteTags("home", "misc", "https://h.com"),
		Settings: model.Settings{model.SettingAllowDuplicateTabs: true, model.SettingAutoSync: true},
		Exists:   true,
	}

	result, _ := h.coord.Start(ctx, ManualPushMerge)
	require.Equal(t, Success, result.SyncResult)
	require.Len(t, h.backend.pushes, 1)
	pushed := h.backend.pushes[0].Tags
	require.Equal(t, []string{"https://a.com"}, urlsIn(pushed, "work"))
	require.Equal(t, []string{"https://h.com"}, urlsIn(pushed, "home"))

	raw, err := h.settings.Raw(ctx)
	require.NoError(t, err)
	require.Equal(t, true, raw[model.SettingAllowDuplicateTabs])
	require.NotContains(t, raw, model.SettingAutoSync)

	again, _ := h.coord.Start(ctx, Auto)
	require.Equal(t, Success, again.SyncResult)
	require.Equal(t, h.backend.pushes[0].Tags, h.backend.pushes[1].Tags, "merging twice is idempotent")
}

func TestAutoSyncWithEmptyRemotePushesLocal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLocal(t, "work", "docs", "https://a.com")

	result, _ := h.coord.Start(ctx, Auto)
	require.Equal(t, Success, result.SyncResult)
	require.Len(t, h.backend.pushes, 1)
	require.Equal(t, []string{"https://a.com"}, urlsIn(h.backend.pushes[0].Tags, "work"))
}

func TestAtMostOneSyncInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	h.backend.entered = make(chan struct{}, 1)

	done := make(chan bool)
	go func() {
		_, started := h.coord.Start(ctx, ManualPullMerge)
		done <- started
	}()
	<-h.backend.entered
	require.True(t, h.coord.Syncing())

	_, started := h.coord.Start(ctx, ManualPullMerge)
	require.False(t, started)

	close(h.backend.gate)
	require.True(t, <-done)
	require.Equal(t, int32(1), h.backend.fetches.Load())
	require.False(t, h.coord.Syncing())
}

func TestFailuresAreClassifiedAndRecorded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.fetchErr = fmt.Errorf("get gist: %w", context.DeadlineExceeded)

	result, started := h.coord.Start(ctx, ManualPullMerge)
	require.True(t, started)
	require.Equal(t, Failed, result.SyncResult)
	require.Equal(t, FailureTimeout, result.Kind)
	require.Equal(t, "The request timed out", result.Reason)

	_, err := h.settings.Update(ctx, model.Settings{model.SettingLanguage: "zh-CN"})
	require.NoError(t, err)
	h.backend.fetchErr = ErrTooLarge
	result, _ = h.coord.Start(ctx, Auto)
	require.Equal(t, FailureTooLarge, result.Kind)
	require.Equal(t, "远程内容过大，无法同步", result.Reason)
	require.Empty(t, h.backend.pushes, "oversized remote is never merged or overwritten")

	results, err := h.coord.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, Auto, results[0].SyncType)
	require.Equal(t, ManualPullMerge, results[1].SyncType)
}

func TestNotifierReceivesEvent(t *testing.T) {
	h := newHarness(t)
	events := make(chanNotifier, 1)
	h.coord.opts.Notifier = events

	h.coord.Start(context.Background(), ManualPushForce)
	select {
	case e := <-events:
		require.Equal(t, "reload", e.Type)
		require.Equal(t, "github", e.Backend)
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload event")
	}
}

func TestResultLogCapsAt50(t *testing.T) {
	ctx := context.Background()
	log := NewResultLog(kv.NewMemory(), kv.KeySyncResult)
	for i := 0; i < 60; i++ {
		require.NoError(t, log.Append(ctx, "github", Result{SyncTime: int64(i), SyncResult: Success}))
	}
	require.NoError(t, log.Append(ctx, "gitee", Result{SyncTime: 1}))

	results, err := log.List(ctx, "github")
	require.NoError(t, err)
	require.Len(t, results, MaxResults)
	require.Equal(t, int64(59), results[0].SyncTime)
	require.Equal(t, int64(10), results[MaxResults-1].SyncTime)

	require.NoError(t, log.Drop(ctx, "github"))
	results, err = log.List(ctx, "github")
	require.NoError(t, err)
	require.Empty(t, results)
	other, err := log.List(ctx, "gitee")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "deadline" }
func (timeoutErr) Timeout() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want FailureKind
	}{
		{fmt.Errorf("wrap: %w", ErrTooLarge), FailureTooLarge},
		{ErrRemoteNotFound, FailureNotFound},
		{context.Canceled, FailureAborted},
		{context.DeadlineExceeded, FailureTimeout},
		{timeoutErr{}, FailureTimeout},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, FailureNetwork},
		{errors.New("boom"), FailureOther},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.err), tc.err.Error())
	}
}

func TestReasonFallsBackToEnglish(t *testing.T) {
	require.Equal(t, "Sync failed", Reason("fr", FailureOther))
	require.Equal(t, "同步失败", Reason("zh", FailureOther))
	require.Equal(t, "Sync failed", Reason("not a tag!", FailureOther))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	other := NewCoordinator(Options{ID: "webdav_1", Backend: &fakeBackend{}, Tree: h.tree, Settings: h.settings, Logger: zerolog.Nop()})

	reg := NewRegistry()
	reg.Register(h.coord)
	reg.Register(other)
	require.Equal(t, []string{"github", "webdav_1"}, reg.IDs())

	_, _, err := reg.Start(ctx, "missing", Auto)
	require.ErrorIs(t, err, ErrUnknownBackend)

	results := reg.StartAll(ctx, ManualPushForce)
	require.Len(t, results, 1)
	require.Contains(t, results, "github")

	reg.Unregister("webdav_1")
	_, ok := reg.Get("webdav_1")
	require.False(t, ok)
}

func TestSchedulerHonoursSettingsAndInterval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	reg := NewRegistry()
	reg.Register(h.coord)
	sched := NewScheduler(reg, h.settings, time.Minute, zerolog.Nop())
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return clock }

	require.False(t, sched.runOnce(ctx), "auto sync is off by default")

	_, err := h.settings.Update(ctx, model.Settings{model.SettingAutoSync: true, model.SettingAutoSyncInterval: 10})
	require.NoError(t, err)
	require.True(t, sched.runOnce(ctx))
	require.Len(t, h.backend.pushes, 1)

	clock = clock.Add(5 * time.Minute)
	require.False(t, sched.runOnce(ctx))
	clock = clock.Add(6 * time.Minute)
	require.True(t, sched.runOnce(ctx))
	require.Len(t, h.backend.pushes, 2)
}

func TestParseSyncType(t *testing.T) {
	got, err := ParseSyncType("manual-pull-force")
	require.NoError(t, err)
	require.Equal(t, ManualPullForce, got)
	got, err = ParseSyncType("")
	require.NoError(t, err)
	require.Equal(t, Auto, got)
	_, err = ParseSyncType("sideways")
	require.Error(t, err)
}
