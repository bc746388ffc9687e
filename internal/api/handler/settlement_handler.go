package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mitra-labs/predcore/internal/api/middleware"
	"github.com/mitra-labs/predcore/internal/service"
)

// SettlementHandler serves the consensus-vote entry point. Manual
// settlement is reached through EventHandler.SettleEvent; oracle
// settlement (SettlementService.SettleOracle) has no HTTP route and no
// caller in this tree (spec §4.D's three entry points, one execution path).
type SettlementHandler struct {
	settlement *service.SettlementService
}

func NewSettlementHandler(settlement *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

// SubmitVote godoc
// POST /api/events/:id/votes [signed]
// Body: {"wallet","timestamp","signature","winner"}
func (h *SettlementHandler) SubmitVote(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid event id")
		return
	}

	var body struct {
		Winner string `json:"winner" binding:"required"`
	}
	if err := c.ShouldBindBodyWith(&body, middleware.JSONBinding); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	if err := h.settlement.SubmitConsensusVote(c.Request.Context(), eventID, wallet, body.Winner, sig, ts); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
