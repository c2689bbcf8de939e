package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/apperr"
	"marketpulse/internal/snapshot"
)

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, snapshot.ErrDuplicateSnapshot) {
		return http.StatusConflict
	}
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindSource:
		switch e.Code {
		case apperr.CodeAuthExpired:
			return http.StatusUnauthorized
		case apperr.CodeRateLimited:
			return http.StatusTooManyRequests
		case apperr.CodePermissionDenied:
			return http.StatusForbidden
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError renders err with its code so clients can react to it, for example by
// prompting re-authorization on auth_expired. The code is also left on the context for
// RequestMetrics.
func WriteError(c *gin.Context, err error) {
	status := StatusFor(err)
	if errors.Is(err, snapshot.ErrDuplicateSnapshot) {
		c.Set(errorCodeKey, "snapshot_duplicate")
		c.JSON(status, gin.H{"error": err.Error(), "code": "snapshot_duplicate"})
		return
	}
	e, ok := apperr.As(err)
	if !ok {
		_ = c.Error(err)
		c.Set(errorCodeKey, "internal")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.Set(errorCodeKey, e.Code)
	body := gin.H{"error": e.Message, "code": e.Code, "kind": e.Kind}
	if e.Source != "" {
		body["source"] = e.Source
	}
	c.JSON(status, body)
}

// reject aborts a request that failed before reaching the engine.
func reject(c *gin.Context, status int, code, msg string) {
	c.Set(errorCodeKey, code)
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
