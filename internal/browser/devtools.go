// Package browser reads the open tabs of a running Chrome through the
// DevTools protocol and turns them into tab snapshots.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"nicetab/api/internal/model"
)

var ErrNoBrowser = errors.New("no devtools endpoint configured")

type Options struct {
	// RemoteURL is the DevTools websocket or http endpoint, for example
	// ws://127.0.0.1:9222.
	RemoteURL string
	// GroupByHost puts tabs of the same host into one group named after it.
	GroupByHost bool
	Timeout     time.Duration
}

// DevTools is a tab source and the group title resolver for the groups it
// hands out.
type DevTools struct {
	opts Options

	mu      sync.Mutex
	hostIDs map[string]int
	titles  map[int]string
}

func NewDevTools(opts Options) *DevTools {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &DevTools{opts: opts, hostIDs: map[string]int{}, titles: map[int]string{}}
}

// Capture lists the page targets of the browser.
func (d *DevTools) Capture(ctx context.Context) ([]model.TabSnapshot, error) {
	if d.opts.RemoteURL == "" {
		return nil, ErrNoBrowser
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, d.opts.RemoteURL)
	defer cancel()
	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// connect before listing; Run with no actions only attaches
	if err := chromedp.Run(taskCtx); err != nil {
		return nil, fmt.Errorf("connect devtools %s: %w", d.opts.RemoteURL, err)
	}
	infos, err := chromedp.Targets(taskCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return d.snapshots(infos), nil
}

func (d *DevTools) snapshots(infos []*target.Info) []model.TabSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []model.TabSnapshot{}
	for _, info := range infos {
		if info == nil || info.Type != "page" || !capturable(info.URL) {
			continue
		}
		snap := model.TabSnapshot{Title: info.Title, URL: info.URL, FavIconURL: favicon(info.URL)}
		if snap.Title == "" {
			snap.Title = info.URL
		}
		if d.opts.GroupByHost {
			snap.NativeGroupID = d.groupFor(hostOf(info.URL))
		}
		out = append(out, snap)
	}
	return out
}

func (d *DevTools) groupFor(host string) int {
	if host == "" {
		return 0
	}
	id, ok := d.hostIDs[host]
	if !ok {
		id = len(d.hostIDs) + 1
		d.hostIDs[host] = id
		d.titles[id] = host
	}
	return id
}

func (d *DevTools) GroupTitle(_ context.Context, id int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	title, ok := d.titles[id]
	return title, ok
}

func capturable(raw string) bool {
	switch {
	case raw == "", raw == "about:blank":
		return false
	case strings.HasPrefix(raw, "devtools://"), strings.HasPrefix(raw, "chrome://"), strings.HasPrefix(raw, "chrome-extension://"):
		return false
	}
	return true
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func favicon(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}
