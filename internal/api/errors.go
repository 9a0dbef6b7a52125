package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/planyard/internal/plan"
)

// Error codes in the JSON error body.
const (
	CodeInvalid      = "invalid"
	CodeNotFound     = "not_found"
	CodeNoActivePlan = "no_active_plan"
	CodeConflict     = "conflict"
	CodeStore        = "store_error"
)

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (s *server) fail(c *gin.Context, err error) {
	var ve *plan.ValidationError
	switch {
	case errors.As(err, &ve):
		abort(c, http.StatusBadRequest, ErrorDetail{Code: CodeInvalid, Message: ve.Message, Field: ve.Field})
	case errors.Is(err, plan.ErrNoActivePlan):
		abort(c, http.StatusNotFound, ErrorDetail{Code: CodeNoActivePlan, Message: err.Error()})
	case errors.Is(err, plan.ErrNotFound):
		abort(c, http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: err.Error()})
	case errors.Is(err, plan.ErrConflict):
		abort(c, http.StatusConflict, ErrorDetail{Code: CodeConflict, Message: err.Error()})
	default:
		s.log.Error("store call failed", "path", c.FullPath(), "err", err)
		abort(c, http.StatusInternalServerError, ErrorDetail{Code: CodeStore, Message: "store error, try again"})
	}
}

func badRequest(c *gin.Context, field, message string) {
	abort(c, http.StatusBadRequest, ErrorDetail{Code: CodeInvalid, Message: message, Field: field})
}

func abort(c *gin.Context, status int, detail ErrorDetail) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: detail})
}
