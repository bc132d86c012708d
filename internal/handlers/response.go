package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ragcore/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondError maps an apperr.Kind to an HTTP status so every handler gets
// consistent status codes without repeating a switch statement.
func RespondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindUnsupported:
		status = http.StatusNotImplemented
	case apperr.KindDeadlineExceeded:
		status = http.StatusGatewayTimeout
	case apperr.KindTransient:
		status = http.StatusServiceUnavailable
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: string(kind)}})
}
