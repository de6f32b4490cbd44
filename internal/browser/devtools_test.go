package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/require"

	"nicetab/api/internal/model"
)

func targets() []*target.Info {
	return []*target.Info{
		{TargetID: "1", Type: "page", Title: "Go", URL: "https://go.dev/doc"},
		{TargetID: "2", Type: "service_worker", URL: "https://go.dev/sw.js"},
		{TargetID: "3", Type: "page", Title: "", URL: "https://go.dev/blog"},
		{TargetID: "4", Type: "page", Title: "Extensions", URL: "chrome://extensions"},
		{TargetID: "5", Type: "page", Title: "Example", URL: "http://example.com:8080/x"},
		nil,
	}
}

func TestSnapshotsKeepsPages(t *testing.T) {
	d := NewDevTools(Options{})
	snaps := d.snapshots(targets())
	require.Equal(t, []model.TabSnapshot{
		{Title: "Go", URL: "https://go.dev/doc", FavIconURL: "https://go.dev/favicon.ico"},
		{Title: "https://go.dev/blog", URL: "https://go.dev/blog", FavIconURL: "https://go.dev/favicon.ico"},
		{Title: "Example", URL: "http://example.com:8080/x", FavIconURL: "http://example.com:8080/favicon.ico"},
	}, snaps)
}

func TestGroupByHostResolvesTitles(t *testing.T) {
	ctx := context.Background()
	d := NewDevTools(Options{GroupByHost: true})
	snaps := d.snapshots(targets())
	require.Len(t, snaps, 3)
	require.Equal(t, snaps[0].NativeGroupID, snaps[1].NativeGroupID)
	require.NotEqual(t, snaps[0].NativeGroupID, snaps[2].NativeGroupID)

	title, ok := d.GroupTitle(ctx, snaps[0].NativeGroupID)
	require.True(t, ok)
	require.Equal(t, "go.dev", title)
	title, ok = d.GroupTitle(ctx, snaps[2].NativeGroupID)
	require.True(t, ok)
	require.Equal(t, "example.com", title)

	_, ok = d.GroupTitle(ctx, 99)
	require.False(t, ok)

	// ids stay stable across captures
	again := d.snapshots(targets())
	require.Equal(t, snaps[0].NativeGroupID, again[0].NativeGroupID)
}

func TestCaptureNeedsEndpoint(t *testing.T) {
	_, err := NewDevTools(Options{}).Capture(context.Background())
	require.True(t, errors.Is(err, ErrNoBrowser))
}
