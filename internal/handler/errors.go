package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/apperr"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindAccessDenied:      http.StatusForbidden,
	apperr.KindOutOfStock:        http.StatusConflict,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindCartEmpty:         http.StatusBadRequest,
	apperr.KindOrderCannotCancel: http.StatusConflict,
	apperr.KindOrderCannotRefund: http.StatusConflict,
	apperr.KindValidation:        http.StatusBadRequest,
	apperr.KindInvalidState:      http.StatusConflict,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindUnauthorized:      http.StatusUnauthorized,
}

func loggerOrDiscard(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeError renders err as {"code","message"}. Anything that is not a
// business error becomes a 500 without leaking its text.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		status, known := kindStatus[e.Kind]
		if !known {
			status = http.StatusBadRequest
		}
		log.DebugContext(c.Request.Context(), "request rejected",
			"route", c.FullPath(), "code", e.Code)
		c.JSON(status, gin.H{"code": e.Code, "message": e.Message})
		return
	}

	log.ErrorContext(c.Request.Context(), "request failed",
		"route", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": "internal server error",
	})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    apperr.ErrInvalidInput.Code,
		"message": err.Error(),
	})
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apperr.ErrInvalidInput.Code,
			"message": "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}
