package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/response"
	"github.com/stemsi/tutoria-backend/internal/service"
)

// statusForKind maps a domain failure category to an HTTP status.
func statusForKind(k service.Kind) int {
	switch k {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// failService writes a domain error with its own code and message. Anything
// else is logged and reported as an internal error.
func failService(c *gin.Context, err error) {
	var de *service.Error
	if errors.As(err, &de) {
		response.FailWithMessage(c, statusForKind(de.Kind), response.ErrCode(de.Code), de.Message)
		return
	}

	zerolog.Ctx(c.Request.Context()).Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// uuidParam parses a path parameter, writing a 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
