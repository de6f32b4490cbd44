// Package gist syncs the tree through a GitHub or Gitee gist holding two
// files: the tab list and the settings.
package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"

	"nicetab/api/internal/model"
	"nicetab/api/internal/syncer"
	"nicetab/api/internal/util"
)

const (
	TabListFile  = "__NiceTab_tab_list__.json"
	SettingsFile = "__NiceTab_settings__.json"
	Description  = "__NiceTab_Sync__"

	// MaxRemoteSize bounds a truncated tab-list file we are willing to
	// download through its raw url.
	MaxRemoteSize = 10 << 20

	DefaultGitHubURL = "https://api.github.com/"
	DefaultGiteeURL  = "https://gitee.com/api/v5/"
)

var ErrNoToken = errors.New("gist access token not configured")

type Option func(*Backend)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(b *Backend) { b.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

type Backend struct {
	provider   Provider
	configs    *ConfigStore
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(provider Provider, configs *ConfigStore, opts ...Option) *Backend {
	b := &Backend{
		provider:   provider,
		configs:    configs,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	switch provider {
	case Gitee:
		b.baseURL = DefaultGiteeURL
	default:
		b.baseURL = DefaultGitHubURL
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("provider", string(provider)).Logger()
	return b
}

func (b *Backend) Name() string { return "gist:" + string(b.provider) }

func (b *Backend) client(token string) (*github.Client, error) {
	base, err := url.Parse(b.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}

	httpClient := *b.httpClient
	var client *github.Client
	if b.provider == Gitee {
		// Gitee takes the token as a query parameter.
		httpClient.Transport = &queryTokenTransport{token: token, base: transportOrDefault(httpClient.Transport)}
		client = github.NewClient(&httpClient)
	} else {
		client = github.NewClient(&httpClient).WithAuthToken(token)
	}
	client.BaseURL = base
	return client, nil
}

type queryTokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *queryTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	q := clone.URL.Query()
	q.Set("access_token", t.token)
	clone.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(clone)
}

func transportOrDefault(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}

func (b *Backend) session(ctx context.Context) (*github.Client, Config, error) {
	cfg, err := b.configs.Get(ctx, b.provider)
	if err != nil {
		return nil, Config{}, err
	}
	if cfg.AccessToken == "" {
		return nil, Config{}, ErrNoToken
	}
	client, err := b.client(cfg.AccessToken)
	if err != nil {
		return nil, Config{}, err
	}
	return client, cfg, nil
}

// resolve finds our gist: the cached id first, then a scan of the user's
// gists for the description sentinel. A nil gist means none exists yet.
func (b *Backend) resolve(ctx context.Context, client *github.Client, cfg Config) (*github.Gist, error) {
	if cfg.GistID != "" {
		g, _, err := client.Gists.Get(ctx, cfg.GistID)
		if err == nil {
			return g, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("get gist %s: %w", cfg.GistID, err)
		}
		b.logger.Warn().Str("gist_id", cfg.GistID).Msg("cached gist is gone, searching again")
	}

	opts := &github.GistListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		gists, resp, err := client.Gists.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("list gists: %w", err)
		}
		for _, g := range gists {
			if g.GetDescription() != Description {
				continue
			}
			full, _, err := client.Gists.Get(ctx, g.GetID())
			if err != nil {
				return nil, fmt.Errorf("get gist %s: %w", g.GetID(), err)
			}
			if err := b.configs.setGistID(ctx, b.provider, full.GetID()); err != nil {
				return nil, err
			}
			return full, nil
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if cfg.GistID != "" {
		if err := b.configs.setGistID(ctx, b.provider, ""); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (b *Backend) Fetch(ctx context.Context) (syncer.RemoteContent, error) {
	client, cfg, err := b.session(ctx)
	if err != nil {
		return syncer.RemoteContent{}, err
	}
	g, err := b.resolve(ctx, client, cfg)
	if err != nil || g == nil {
		return syncer.RemoteContent{}, err
	}

	content := syncer.RemoteContent{Exists: true}
	if file, ok := g.Files[TabListFile]; ok {
		raw, err := b.readFile(ctx, client, file, true)
		if err != nil {
			return syncer.RemoteContent{}, err
		}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &content.Tags); err != nil {
				return syncer.RemoteContent{}, fmt.Errorf("decode %s: %w", TabListFile, err)
			}
		}
	}
	if file, ok := g.Files[SettingsFile]; ok {
		raw, err := b.readFile(ctx, client, file, false)
		if err != nil {
			return syncer.RemoteContent{}, err
		}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &content.Settings); err != nil {
				return syncer.RemoteContent{}, fmt.Errorf("decode %s: %w", SettingsFile, err)
			}
		}
	}
	return content, nil
}

// readFile returns the full file content. The API truncates large files;
// those are fetched from their raw url unless guard is set and the file is
// bigger than MaxRemoteSize.
func (b *Backend) readFile(ctx context.Context, client *github.Client, file github.GistFile, guard bool) (string, error) {
	content := file.GetContent()
	size := file.GetSize()
	if size <= len(content) {
		return content, nil
	}
	if guard && size > MaxRemoteSize {
		return "", fmt.Errorf("%s is %d bytes: %w", file.GetFilename(), size, syncer.ErrTooLarge)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.GetRawURL(), nil)
	if err != nil {
		return "", fmt.Errorf("build raw request: %w", err)
	}
	resp, err := client.Client().Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch raw %s: %w", file.GetFilename(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch raw %s: status %d", file.GetFilename(), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxRemoteSize+1))
	if err != nil {
		return "", fmt.Errorf("read raw %s: %w", file.GetFilename(), err)
	}
	if len(data) > MaxRemoteSize {
		return "", fmt.Errorf("%s: %w", file.GetFilename(), syncer.ErrTooLarge)
	}
	return string(data), nil
}

func (b *Backend) Push(ctx context.Context, content syncer.RemoteContent) error {
	client, cfg, err := b.session(ctx)
	if err != nil {
		return err
	}
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

	files := map[github.GistFilename]github.GistFile{
		TabListFile:  {Filename: github.String(TabListFile), Content: github.String(util.SanitizeContent(string(tabList)))},
		SettingsFile: {Filename: github.String(SettingsFile), Content: github.String(util.SanitizeContent(string(settingsJSON)))},
	}

	existing, err := b.resolve(ctx, client, cfg)
	if err != nil {
		return err
	}
	if existing != nil {
		if _, _, err := client.Gists.Edit(ctx, existing.GetID(), &github.Gist{Files: files}); err != nil {
			return fmt.Errorf("update gist %s: %w", existing.GetID(), err)
		}
		return nil
	}

	created, _, err := client.Gists.Create(ctx, &github.Gist{
		Description: github.String(Description),
		Public:      github.Bool(false),
		Files:       files,
	})
	if err != nil {
		return fmt.Errorf("create gist: %w", err)
	}
	b.logger.Info().Str("gist_id", created.GetID()).Msg("created sync gist")
	return b.configs.setGistID(ctx, b.provider, created.GetID())
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}
