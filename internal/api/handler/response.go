package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mitra-labs/predcore/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// statusForKind maps a domain.Kind to its HTTP status class, per spec §7.
func statusForKind(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBusinessLogic:
		return http.StatusConflict
	case domain.KindStorage:
		return http.StatusInternalServerError
	case domain.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError is the one error-translation funnel every handler uses:
// it reads the Kind tag off err (defaulting to Internal for anything not
// wrapped in *domain.Error) and writes the matching status class with the
// Kind name as the machine-readable code.
func respondDomainError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	respondError(c, statusForKind(kind), kind.String(), err.Error())
}
