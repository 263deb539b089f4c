package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/apperr"
	"villabook/internal/infra/obs"
)

var errServiceUnavailable = errors.New("service unavailable")

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// respondError writes the typed error of err. Internal causes are logged and never leave the process.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	e := apperr.Normalize(err)
	requestID := obs.RequestIDFromContext(c.Request.Context())
	status := statusOf(e.Kind)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", requestID,
			"err", err,
		)
	}
	c.AbortWithStatusJSON(status, envelope{Error: &errorBody{
		Code:      e.Code,
		Message:   e.Message,
		RequestID: requestID,
	}})
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, nil, apperr.Validation("invalid_request", err))
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func unavailable(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, envelope{Error: &errorBody{
		Code:      "service_unavailable",
		Message:   errServiceUnavailable.Error(),
		RequestID: obs.RequestIDFromContext(c.Request.Context()),
	}})
}
