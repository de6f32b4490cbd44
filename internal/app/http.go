package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"nicetab/api/internal/codec"
	"nicetab/api/internal/search"
	"nicetab/api/internal/syncer/gist"
	"nicetab/api/internal/syncer/webdav"
)

const maxImportBytes = 20 << 20

type HTTPServer struct {
	service    *Service
	events     http.Handler
	corsOrigin string
	apiKeyHash []byte
	logger     zerolog.Logger
}

// NewHTTPServer serves the API. events handles /api/events and may be nil.
// An empty apiKeyHash leaves the API open.
func NewHTTPServer(service *Service, events http.Handler, corsOrigin, apiKeyHash string, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{service: service, events: events, corsOrigin: corsOrigin, logger: logger.With().Str("component", "http").Logger()}
	if strings.TrimSpace(apiKeyHash) != "" {
		s.apiKeyHash = []byte(apiKeyHash)
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid API key", nil)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	switch parts[1] {
	case "events":
		if s.events == nil || r.Method != http.MethodGet {
			break
		}
		s.events.ServeHTTP(w, r)
		return
	case "tags":
		if r.Method == http.MethodGet && len(parts) == 2 {
			view, err := s.service.Tags(r.Context())
			s.respond(w, http.StatusOK, view, err)
			return
		}
	case "count":
		if r.Method == http.MethodGet && len(parts) == 2 {
			count, err := s.service.CountInfo(r.Context())
			s.respond(w, http.StatusOK, count, err)
			return
		}
	case "settings":
		if r.Method == http.MethodGet && len(parts) == 2 {
			settings, err := s.service.Settings(r.Context())
			s.respond(w, http.StatusOK, settings, err)
			return
		}
	case "commands":
		if r.Method == http.MethodPost && len(parts) == 2 {
			s.handleCommand(w, r)
			return
		}
	case "recycle":
		if r.Method == http.MethodGet && len(parts) == 2 {
			view, err := s.service.RecycleBin(r.Context())
			s.respond(w, http.StatusOK, view, err)
			return
		}
	case "import":
		if r.Method == http.MethodPost && len(parts) == 2 {
			s.handleImport(w, r)
			return
		}
	case "export":
		if r.Method == http.MethodGet && len(parts) == 2 {
			s.handleExport(w, r)
			return
		}
	case "capture":
		if r.Method == http.MethodPost && len(parts) == 2 {
			count, err := s.service.Capture(r.Context(), r.URL.Query().Get("createNewGroup") == "true")
			s.respond(w, http.StatusOK, count, err)
			return
		}
	case "sync":
		if s.handleSync(w, r, parts[2:]) {
			return
		}
	case "gist":
		if s.handleGist(w, r, parts[2:]) {
			return
		}
	case "webdav":
		if s.handleWebDAV(w, r, parts[2:]) {
			return
		}
	case "search":
		if r.Method == http.MethodGet && len(parts) == 2 {
			q := r.URL.Query()
			writeJSON(w, http.StatusOK, s.service.Search(search.Query{
				Text:        q.Get("q"),
				FilterTagID: q.Get("tagId"),
				Limit:       atoiOr(q.Get("limit"), 0),
				Offset:      atoiOr(q.Get("offset"), 0),
			}))
			return
		}
	case "history":
		if s.handleHistory(w, r, parts[2:]) {
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := decodeBody(r, &env); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	cmd, err := DecodeCommand(env)
	if err != nil {
		s.fail(w, err)
		return
	}
	result, err := s.service.Execute(r.Context(), cmd)
	if err != nil {
		s.fail(w, err)
		return
	}
	count, err := s.service.CountInfo(r.Context())
	s.respond(w, http.StatusOK, map[string]any{"result": result, "countInfo": count}, err)
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read body", nil)
		return
	}
	if len(body) > maxImportBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "Import is too large", nil)
		return
	}
	q := r.URL.Query()
	count, err := s.service.Import(r.Context(), q.Get("format"), q.Get("mode"), string(body))
	s.respond(w, http.StatusOK, count, err)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	content, err := s.service.Export(r.Context(), format)
	if err != nil {
		s.fail(w, err)
		return
	}
	if f, _ := codec.ParseFormat(format); f == codec.OneTab {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, content)
}

func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		writeJSON(w, http.StatusOK, map[string]any{"targets": s.service.SyncTargets()})
	case r.Method == http.MethodPost && len(rest) == 1:
		result, started, err := s.service.Sync(r.Context(), rest[0], r.URL.Query().Get("type"))
		if err != nil {
			s.fail(w, err)
			return true
		}
		if !started {
			writeJSON(w, http.StatusConflict, map[string]any{"started": false})
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"started": true, "result": result})
	case r.Method == http.MethodGet && len(rest) == 2 && rest[1] == "results":
		results, err := s.service.SyncResults(r.Context(), rest[0])
		s.respond(w, http.StatusOK, map[string]any{"results": results}, err)
	default:
		return false
	}
	return true
}

func (s *HTTPServer) handleGist(w http.ResponseWriter, r *http.Request, rest []string) bool {
	if len(rest) == 0 || rest[0] != "configs" {
		return false
	}
	switch {
	case r.Method == http.MethodGet && len(rest) == 1:
		configs, err := s.service.GistConfigs(r.Context())
		s.respond(w, http.StatusOK, configs, err)
	case r.Method == http.MethodPut && len(rest) == 2:
		var cfg gist.Config
		if err := decodeBody(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		err := s.service.SaveGistConfig(r.Context(), gist.Provider(rest[1]), cfg)
		s.respond(w, http.StatusOK, map[string]any{"ok": true}, err)
	default:
		return false
	}
	return true
}

func (s *HTTPServer) handleWebDAV(w http.ResponseWriter, r *http.Request, rest []string) bool {
	if len(rest) == 0 || rest[0] != "configs" {
		return false
	}
	switch {
	case r.Method == http.MethodGet && len(rest) == 1:
		configs, err := s.service.WebDAVConfigs(r.Context())
		s.respond(w, http.StatusOK, map[string]any{"configList": configs}, err)
	case r.Method == http.MethodPost && len(rest) == 1:
		var cfg webdav.Config
		if err := decodeBody(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		added, err := s.service.AddWebDAVConfig(r.Context(), cfg)
		s.respond(w, http.StatusCreated, added, err)
	case r.Method == http.MethodPut && len(rest) == 2:
		var cfg webdav.Config
		if err := decodeBody(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		cfg.Key = rest[1]
		err := s.service.UpdateWebDAVConfig(r.Context(), cfg)
		s.respond(w, http.StatusOK, map[string]any{"ok": true}, err)
	case r.Method == http.MethodDelete && len(rest) == 2:
		err := s.service.RemoveWebDAVConfig(r.Context(), rest[1])
		s.respond(w, http.StatusOK, map[string]any{"ok": true}, err)
	default:
		return false
	}
	return true
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		commits, err := s.service.History(r.Context(), atoiOr(r.URL.Query().Get("limit"), 50))
		s.respond(w, http.StatusOK, map[string]any{"history": commits}, err)
	case r.Method == http.MethodPost && len(rest) == 0:
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		hash, err := s.service.Snapshot(r.Context(), body.Message)
		s.respond(w, http.StatusCreated, map[string]any{"hash": hash}, err)
	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "restore":
		count, err := s.service.RestoreSnapshot(r.Context(), rest[0])
		s.respond(w, http.StatusOK, count, err)
	default:
		return false
	}
	return true
}

// authorized checks the bearer key, or the key query parameter for
// clients that cannot set headers.
func (s *HTTPServer) authorized(r *http.Request) bool {
	if s.apiKeyHash == nil {
		return true
	}
	key := bearerToken(r)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(key)) == nil
}

func (s *HTTPServer) respond(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, status, payload)
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func atoiOr(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
