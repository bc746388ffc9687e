package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mitra-labs/predcore/internal/audit"
	"github.com/mitra-labs/predcore/internal/merkle"
)

// MerkleHandler serves inclusion-proof lookups for emergency withdrawal
// assistance (spec §4.E): a user can fetch their bet's proof against the
// last committed root even if the off-chain service later becomes
// unreachable.
type MerkleHandler struct {
	committer *merkle.Committer
	audit     *audit.Logger
}

func NewMerkleHandler(committer *merkle.Committer, auditLogger *audit.Logger) *MerkleHandler {
	return &MerkleHandler{committer: committer, audit: auditLogger}
}

// GetProof godoc
// GET /api/events/:id/bets/:betId/proof?wallet=...
//
// Serving a proof is the audited "emergency_withdrawal" event of spec
// §4.I: the proof is what lets a user withdraw directly against the
// on-chain root if the off-chain service becomes unreachable, so fetching
// it is the forensic record of that path being exercised.
func (h *MerkleHandler) GetProof(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid event id")
		return
	}
	betID, err := uuid.Parse(c.Param("betId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid bet id")
		return
	}

	proof, ok := h.committer.ProofFor(eventID, betID)
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "no committed proof available for this bet yet")
		return
	}
	if h.audit != nil {
		h.audit.LogEmergencyWithdrawal(betID, c.Query("wallet"), "", "")
	}
	respondSuccess(c, http.StatusOK, proof)
}
