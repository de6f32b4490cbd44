// Package webdav syncs the tree to a WebDAV collection. Each configured
// endpoint is its own backend.
package webdav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/studio-b12/gowebdav"

	"nicetab/api/internal/model"
	"nicetab/api/internal/syncer"
	"nicetab/api/internal/util"
)

const (
	Dir          = "/__NiceTab_web_dav__/"
	TabListFile  = "__NiceTab_tab_list__.json"
	SettingsFile = "__NiceTab_settings__.json"

	DefaultTimeout = 10 * time.Second
)

// TimeoutError reports a WebDAV call cut off by the per-call timeout.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("webdav %s: timed out after %s", e.Op, e.After)
}

func (e *TimeoutError) Timeout() bool { return true }

type Option func(*Backend)

func WithTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(b *Backend) { b.transport = rt }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

type Backend struct {
	key       string
	configs   *ConfigStore
	timeout   time.Duration
	transport http.RoundTripper
	logger    zerolog.Logger
}

func New(key string, configs *ConfigStore, opts ...Option) *Backend {
	b := &Backend{
		key:       key,
		configs:   configs,
		timeout:   DefaultTimeout,
		transport: http.DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("webdav", key).Logger()
	return b
}

func (b *Backend) Name() string { return "webdav:" + b.key }

// ctxTransport ties every request of a call to that call's context so a
// timeout aborts the request in flight.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// call runs fn against a client bound to a context that expires after the
// backend timeout.
func (b *Backend) call(ctx context.Context, op string, fn func(c *gowebdav.Client) error) error {
	cfg, err := b.configs.Get(ctx, b.key)
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	client := gowebdav.NewClient(strings.TrimSpace(cfg.URL), cfg.Username, cfg.Password)
	client.SetTimeout(b.timeout)
	client.SetTransport(&ctxTransport{ctx: callCtx, base: b.transport})

	err = fn(client)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("webdav %s: %w", op, ctx.Err())
	}
	var timeout interface{ Timeout() bool }
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
		return &TimeoutError{Op: op, After: b.timeout}
	}
	return fmt.Errorf("webdav %s: %w", op, err)
}

// ensureDir creates dir one level at a time, checking each level first.
func ensureDir(c *gowebdav.Client, dir string) error {
	current := "/"
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part) + "/"
		if _, err := c.Stat(current); err == nil {
			continue
		} else if !gowebdav.IsErrNotFound(err) {
			return fmt.Errorf("stat %s: %w", current, err)
		}
		if err := c.Mkdir(current, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", current, err)
		}
	}
	return nil
}

func (b *Backend) Fetch(ctx context.Context) (syncer.RemoteContent, error) {
	var content syncer.RemoteContent
	err := b.call(ctx, "fetch", func(c *gowebdav.Client) error {
		raw, err := c.Read(Dir + TabListFile)
		if gowebdav.IsErrNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		content.Exists = true
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &content.Tags); err != nil {
				return fmt.Errorf("decode %s: %w", TabListFile, err)
			}
		}

		raw, err = c.Read(Dir + SettingsFile)
		if gowebdav.IsErrNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &content.Settings); err != nil {
				return fmt.Errorf("decode %s: %w", SettingsFile, err)
			}
		}
		return nil
	})
	if err != nil {
		return syncer.RemoteContent{}, err
	}
	return content, nil
}

func (b *Backend) Push(ctx context.Context, content syncer.RemoteContent) error {
	tags := content.Tags
	if tags == nil {
		tags = []model.Tag{}
	}
	tabList, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TabListFile, err)
	}
	settings := content.Settings
	if settings == nil {
		settings = model.Settings{}
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode %s: %w", SettingsFile, err)
	}

	return b.call(ctx, "push", func(c *gowebdav.Client) error {
		if err := ensureDir(c, Dir); err != nil {
			return err
		}
		if err := c.Write(Dir+TabListFile, []byte(util.SanitizeContent(string(tabList))), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", TabListFile, err)
		}
		if err := c.Write(Dir+SettingsFile, []byte(util.SanitizeContent(string(settingsJSON))), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", SettingsFile, err)
		}
		b.logger.Debug().Int("bytes", len(tabList)).Msg("pushed tab list")
		return nil
	})
}
