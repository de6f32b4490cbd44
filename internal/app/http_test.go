package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"nicetab/api/internal/syncer"
	"nicetab/api/internal/syncer/webdav"
)

func newTestServer(t *testing.T, apiKeyHash string) (*httptest.Server, *App) {
	t.Helper()
	a := newTestApp(t)
	server := NewHTTPServer(a.Service, a.Hub, "*", apiKeyHash, zerolog.Nop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, a
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, payload["ok"])
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/ready", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ready", payload["status"])
}

func TestAPIKeyRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	ts, _ := newTestServer(t, string(hash))

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/tags", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", payload["code"])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/tags", nil, map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/tags", nil, map[string]string{"Authorization": "Bearer s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload["tagList"], 1)
}

func TestCommandRoute(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/commands", map[string]any{
		"type":    "addTag",
		"payload": map[string]any{"tagName": "Work"},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := payload["result"].(map[string]any)
	require.Equal(t, "Work", result["tagName"])
	count := payload["countInfo"].(map[string]any)
	require.Equal(t, float64(2), count["tagCount"])

	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/commands", map[string]any{"type": "nope"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "UNKNOWN_COMMAND", payload["code"])
}

func TestImportExportRoutes(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Post(ts.URL+"/api/import?format=onetab&mode=append", "text/plain",
		strings.NewReader("https://a.example | A\nhttps://b.example | B\n"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/export?format=onetab")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "https://b.example | B")

	bad, payload := doJSON(t, http.MethodGet, ts.URL+"/api/export?format=pdf", nil, nil)
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
	require.Equal(t, "IMPORT_FAILED", payload["code"])
}

func TestRecycleRoute(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/recycle", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, payload["tagList"])
}

func TestWebDAVConfigRoutes(t *testing.T) {
	ts, a := newTestServer(t, "")

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/webdav/configs", webdav.Config{
		Label: "home",
		URL:   "https://dav.example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	key := payload["key"].(string)
	require.NotEmpty(t, key)

	require.Contains(t, a.Service.registry.IDs(), key)

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/webdav/configs", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload["configList"], 1)

	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/webdav/configs", webdav.Config{URL: "ftp://nope"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_WEBDAV_CONFIG", payload["code"])

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/webdav/configs/"+key, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, a.Service.registry.IDs(), key)

	resp, payload = doJSON(t, http.MethodPut, ts.URL+"/api/webdav/configs/"+key, webdav.Config{URL: "https://dav.example.com"}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "WEBDAV_CONFIG_NOT_FOUND", payload["code"])
}

func TestSyncRoutes(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/sync", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload["targets"], 2)

	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/sync/missing?type=auto", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "UNKNOWN_BACKEND", payload["code"])
}

func TestSearchRoute(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Post(ts.URL+"/api/import?format=onetab&mode=append", "text/plain",
		strings.NewReader("https://go.dev | The Go Programming Language\nhttps://rust-lang.org | Rust\n"))
	require.NoError(t, err)
	resp.Body.Close()

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/search?q=programming", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hits := payload["results"].([]any)
	require.Len(t, hits, 1)
	require.Equal(t, "https://go.dev", hits[0].(map[string]any)["url"])
}

func TestEventsRouteStreamsSyncEvents(t *testing.T) {
	ts, a := newTestServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return a.Hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Hub.Publish(ctx, syncer.Event{Type: "reload", Backend: "gist:github"}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), "gist:github")
}
