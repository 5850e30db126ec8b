package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/serviceerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeInvalidRequestBody = "request.invalid_body"
	codeInternal           = "internal"
)

func statusForKind(kind serviceerr.Kind) int {
	switch kind {
	case serviceerr.KindValidation:
		return http.StatusBadRequest
	case serviceerr.KindForbidden:
		return http.StatusForbidden
	case serviceerr.KindNotFound:
		return http.StatusNotFound
	case serviceerr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError renders a service failure as {"error", "code"} with the status its kind maps to.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := statusForKind(serviceerr.KindOf(err))
	code := serviceerr.CodeOf(err)
	if code == "" {
		code = codeInternal
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", code), zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": serviceerr.MessageOf(err), "code": code})
}

func respondInvalidBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeInvalidRequestBody})
}
