package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
	"github.com/veritas-ponto/veritas-api/pkg/response"
)

// idParam parses the :id path segment. On failure it writes the error
// response and reports false.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid id"))
		return 0, false
	}
	return id, true
}

// timeNow is swapped in handler tests.
var timeNow = time.Now

// parseFlexibleTime accepts RFC 3339 or a naive local timestamp. An
// empty value means now.
func parseFlexibleTime(raw string) (time.Time, error) {
	if raw == "" {
		return timeNow(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", raw, time.Local)
}
