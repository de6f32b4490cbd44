package app

import (
	"errors"
	"fmt"
	"net/http"

	"nicetab/api/internal/codec"
	"nicetab/api/internal/history"
	"nicetab/api/internal/syncer"
	"nicetab/api/internal/syncer/gist"
	"nicetab/api/internal/syncer/webdav"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	case errors.Is(err, codec.ErrInvalidFormat):
		return http.StatusBadRequest, "IMPORT_FAILED", "Import failed", err.Error()
	case errors.Is(err, syncer.ErrUnknownBackend):
		return http.StatusNotFound, "UNKNOWN_BACKEND", "Unknown sync backend", nil
	case errors.Is(err, webdav.ErrConfigNotFound):
		return http.StatusNotFound, "WEBDAV_CONFIG_NOT_FOUND", "WebDAV config not found", nil
	case errors.Is(err, webdav.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_WEBDAV_CONFIG", "WebDAV url must be http or https", nil
	case errors.Is(err, gist.ErrNoToken):
		return http.StatusBadRequest, "GIST_TOKEN_MISSING", "Gist access token not configured", nil
	case errors.Is(err, history.ErrSnapshotNotFound):
		return http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "Snapshot not found", nil
	}
	return http.StatusInternalServerError, "INTERNAL", "Internal server error", nil
}
