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

// WalletHandler serves balance, deposit, withdrawal, and claim endpoints.
type WalletHandler struct {
	betting *service.BettingService
}

func NewWalletHandler(betting *service.BettingService) *WalletHandler {
	return &WalletHandler{betting: betting}
}

// GetBalance godoc
// GET /api/groups/:id/balance?wallet=...
func (h *WalletHandler) GetBalance(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid group id")
		return
	}
	wallet := c.Query("wallet")
	if wallet == "" {
		respondError(c, http.StatusBadRequest, "validation", "wallet query parameter is required")
		return
	}

	balance, err := h.betting.GetUserBalance(c.Request.Context(), wallet, groupID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"balance":   balance.BalanceUSDC,
		"locked":    balance.LockedUSDC,
		"available": balance.Available(),
	})
}

// parseAmountBody extracts and validates a positive decimal "amount" field
// shared by deposit/withdraw/claim requests.
func parseAmountBody(c *gin.Context) (decimal.Decimal, bool) {
	var body struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindBodyWith(&body, middleware.JSONBinding); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return decimal.Decimal{}, false
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondDomainError(c, domain.NewValidation(domain.ErrInvalidAmount))
		return decimal.Decimal{}, false
	}
	return amount, true
}

// Deposit godoc
// POST /api/groups/:id/deposit [signed]
// Body: {"wallet","timestamp","signature","amount","group_pubkey"}
func (h *WalletHandler) Deposit(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid group id")
		return
	}

	var body struct {
		GroupPubkey string `json:"group_pubkey"`
	}
	_ = c.ShouldBindBodyWith(&body, middleware.JSONBinding)
	amount, ok := parseAmountBody(c)
	if !ok {
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	if err := h.betting.DepositFunds(c.Request.Context(), wallet, groupID, body.GroupPubkey, amount, sig, ts); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Withdraw godoc
// POST /api/groups/:id/withdraw [signed]
// Body: {"wallet","timestamp","signature","amount","group_pubkey"}
func (h *WalletHandler) Withdraw(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid group id")
		return
	}

	var body struct {
		GroupPubkey string `json:"group_pubkey"`
	}
	_ = c.ShouldBindBodyWith(&body, middleware.JSONBinding)
	amount, ok := parseAmountBody(c)
	if !ok {
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	if err := h.betting.WithdrawFunds(c.Request.Context(), wallet, groupID, body.GroupPubkey, amount, sig, ts); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClaimWinnings godoc
// POST /api/payouts/:id/claim [signed]
// Body: {"wallet","timestamp","signature","event_pubkey","group_pubkey","amount"}
func (h *WalletHandler) ClaimWinnings(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid payout id")
		return
	}

	var body struct {
		EventPubkey string `json:"event_pubkey"`
		GroupPubkey string `json:"group_pubkey"`
	}
	_ = c.ShouldBindBodyWith(&body, middleware.JSONBinding)
	amount, ok := parseAmountBody(c)
	if !ok {
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	if err := h.betting.ClaimWinnings(c.Request.Context(), wallet, payoutID, body.EventPubkey, body.GroupPubkey, amount, sig, ts); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
