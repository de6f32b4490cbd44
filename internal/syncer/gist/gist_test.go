package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nicetab/api/internal/kv"
	"nicetab/api/internal/model"
	"nicetab/api/internal/syncer"
)

type fakeFile struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Size      int    `json:"size"`
	RawURL    string `json:"raw_url"`
	truncated bool
}

type fakeGist struct {
	ID          string               `json:"id"`
	Description string               `json:"description"`
	Public      bool                 `json:"public"`
	Files       map[string]*fakeFile `json:"files"`
}

// fakeGistAPI serves the subset of the gists API the backend uses.
type fakeGistAPI struct {
	mu       sync.Mutex
	server   *httptest.Server
	gists    map[string]*fakeGist
	nextID   int
	tokens   []string
	rawCalls int
}

func newFakeGistAPI(t *testing.T) *fakeGistAPI {
	api := &fakeGistAPI{gists: map[string]*fakeGist{}}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeGistAPI) handle(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	token := r.URL.Query().Get("access_token")
	if auth := r.Header.Get("Authorization"); auth != "" {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	a.tokens = append(a.tokens, token)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "raw":
		a.rawCalls++
		g, ok := a.gists[parts[1]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(g.Files[parts[2]].Content))
	case len(parts) == 1 && parts[0] == "gists" && r.Method == http.MethodGet:
		list := []map[string]any{}
		for _, g := range a.gists {
			list = append(list, map[string]any{"id": g.ID, "description": g.Description})
		}
		writeJSON(w, http.StatusOK, list)
	case len(parts) == 1 && parts[0] == "gists" && r.Method == http.MethodPost:
		var in fakeGist
		_ = json.NewDecoder(r.Body).Decode(&in)
		a.nextID++
		in.ID = fmt.Sprintf("gist%d", a.nextID)
		for name, f := range in.Files {
			f.Filename = name
			f.Size = len(f.Content)
		}
		a.gists[in.ID] = &in
		writeJSON(w, http.StatusCreated, a.render(&in))
	case len(parts) == 2 && parts[0] == "gists":
		g, ok := a.gists[parts[1]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		if r.Method == http.MethodPatch {
			var in fakeGist
			_ = json.NewDecoder(r.Body).Decode(&in)
			for name, f := range in.Files {
				f.Filename = name
				f.Size = len(f.Content)
				g.Files[name] = f
			}
		}
		writeJSON(w, http.StatusOK, a.render(g))
	default:
		http.NotFound(w, r)
	}
}

func (a *fakeGistAPI) render(g *fakeGist) fakeGist {
	out := fakeGist{ID: g.ID, Description: g.Description, Files: map[string]*fakeFile{}}
	for name, f := range g.Files {
		copyFile := *f
		copyFile.RawURL = a.server.URL + "/raw/" + g.ID + "/" + name
		if f.truncated {
			copyFile.Content = f.Content[:10]
		}
		out.Files[name] = &copyFile
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T, provider Provider, api *fakeGistAPI) (*Backend, *ConfigStore) {
	t.Helper()
	configs := NewConfigStore(kv.NewMemory())
	require.NoError(t, configs.Save(context.Background(), provider, Config{AccessToken: "secret"}))
	return New(provider, configs, WithBaseURL(api.server.URL)), configs
}

func sampleContent() syncer.RemoteContent {
	return syncer.RemoteContent{
		Tags: []model.Tag{{TagName: "work \U0001F4BC", GroupList: []model.Group{
			{GroupName: "docs", TabList: []model.Tab{{Title: "A", URL: "https://a.com"}}},
		}}},
		Settings: model.Settings{model.SettingLanguage: "zh"},
		Exists:   true,
	}
}

func TestFetchWithoutGistReportsMissing(t *testing.T) {
	api := newFakeGistAPI(t)
	backend, _ := newBackend(t, GitHub, api)

	content, err := backend.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, content.Exists)
}

func TestPushCreatesThenUpdatesGist(t *testing.T) {
	ctx := context.Background()
	api := newFakeGistAPI(t)
	backend, configs := newBackend(t, GitHub, api)

	require.NoError(t, backend.Push(ctx, sampleContent()))
	cfg, err := configs.Get(ctx, GitHub)
	require.NoError(t, err)
	require.Equal(t, "gist1", cfg.GistID)
	require.Equal(t, "secret", cfg.AccessToken)
	require.Equal(t, Description, api.gists["gist1"].Description)
	require.NotContains(t, api.gists["gist1"].Files[TabListFile].Content, "\U0001F4BC")

	next := sampleContent()
	next.Tags[0].TagName = "home"
	require.NoError(t, backend.Push(ctx, next))
	require.Len(t, api.gists, 1)

	fetched, err := backend.Fetch(ctx)
	require.NoError(t, err)
	require.True(t, fetched.Exists)
	require.Equal(t, "home", fetched.Tags[0].TagName)
	require.Equal(t, "zh", fetched.Settings[model.SettingLanguage])
	require.Contains(t, api.tokens, "secret")
}

func TestFetchFindsGistByDescription(t *testing.T) {
	ctx := context.Background()
	api := newFakeGistAPI(t)
	api.gists["other"] = &fakeGist{ID: "other", Description: "notes", Files: map[string]*fakeFile{}}
	api.gists["ours"] = &fakeGist{ID: "ours", Description: Description, Files: map[string]*fakeFile{
		TabListFile: {Filename: TabListFile, Content: `[{"tagName":"found","groupList":[]}]`, Size: 36},
	}}
	backend, configs := newBackend(t, GitHub, api)
	require.NoError(t, configs.Save(ctx, GitHub, Config{AccessToken: "secret", GistID: "deleted"}))

	content, err := backend.Fetch(ctx)
	require.NoError(t, err)
	require.True(t, content.Exists)
	require.Equal(t, "found", content.Tags[0].TagName)
	cfg, err := configs.Get(ctx, GitHub)
	require.NoError(t, err)
	require.Equal(t, "ours", cfg.GistID)
}

func TestTruncatedFileIsFetchedFromRawURL(t *testing.T) {
	ctx := context.Background()
	api := newFakeGistAPI(t)
	body := `[{"tagName":"raw","groupList":[]}]`
	api.gists["g"] = &fakeGist{ID: "g", Description: Description, Files: map[string]*fakeFile{
		TabListFile: {Filename: TabListFile, Content: body, Size: len(body), truncated: true},
	}}
	backend, _ := newBackend(t, GitHub, api)

	content, err := backend.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, "raw", content.Tags[0].TagName)
	require.Equal(t, 1, api.rawCalls)
}

func TestOversizedTruncatedFileAborts(t *testing.T) {
	ctx := context.Background()
	api := newFakeGistAPI(t)
	api.gists["g"] = &fakeGist{ID: "g", Description: Description, Files: map[string]*fakeFile{
		TabListFile: {Filename: TabListFile, Content: strings.Repeat("x", 20), Size: MaxRemoteSize + 1, truncated: true},
	}}
	backend, _ := newBackend(t, GitHub, api)

	_, err := backend.Fetch(ctx)
	require.True(t, errors.Is(err, syncer.ErrTooLarge))
	require.Equal(t, syncer.FailureTooLarge, syncer.Classify(err))
	require.Zero(t, api.rawCalls)
}

func TestGiteeSendsTokenAsQueryParameter(t *testing.T) {
	ctx := context.Background()
	api := newFakeGistAPI(t)
	backend, _ := newBackend(t, Gitee, api)

	require.NoError(t, backend.Push(ctx, sampleContent()))
	require.NotEmpty(t, api.tokens)
	for _, token := range api.tokens {
		require.Equal(t, "secret", token)
	}
	require.Equal(t, "gist:gitee", backend.Name())
}

func TestMissingTokenFails(t *testing.T) {
	configs := NewConfigStore(kv.NewMemory())
	backend := New(GitHub, configs)
	_, err := backend.Fetch(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}
