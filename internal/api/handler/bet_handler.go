package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/api/middleware"
	"github.com/mitra-labs/predcore/internal/domain"
	"github.com/mitra-labs/predcore/internal/service"
)

// BetHandler serves bet placement.
type BetHandler struct {
	betting *service.BettingService
}

func NewBetHandler(betting *service.BettingService) *BetHandler {
	return &BetHandler{betting: betting}
}

// PlaceBet godoc
// POST /api/events/:id/bets [signed]
// Body: {"wallet","timestamp","signature","outcome","amount"}
func (h *BetHandler) PlaceBet(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid event id")
		return
	}

	var body struct {
		Outcome string `json:"outcome" binding:"required"`
		Amount  string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindBodyWith(&body, middleware.JSONBinding); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondDomainError(c, domain.NewValidation(domain.ErrInvalidAmount))
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	req := domain.PlaceBetRequest{
		EventID: eventID, UserWallet: wallet, Outcome: body.Outcome, Amount: amount,
	}
	result, err := h.betting.PlaceBet(c.Request.Context(), req, sig, ts)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, result)
}
