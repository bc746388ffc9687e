package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mitra-labs/predcore/internal/service"
)

// ReportHandler serves the finance aggregate report, grounded on the
// teacher's back-office finance dashboard query (market_repo.go:
// GetFinanceReport) but exposed here without a separate admin HTTP surface
// — see DESIGN.md's dropped-module note on internal/backoffice.
type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GetFinanceReport godoc
// GET /api/reports/finance?from=RFC3339&to=RFC3339
func (h *ReportHandler) GetFinanceReport(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "from must be an RFC3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "to must be an RFC3339 timestamp")
		return
	}

	report, err := h.reports.GetFinanceReport(c.Request.Context(), from, to)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}
