package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mitra-labs/predcore/internal/api/middleware"
	"github.com/mitra-labs/predcore/internal/service"
)

// GroupHandler serves group creation, membership, and listing endpoints.
type GroupHandler struct {
	groups *service.GroupService
}

func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// CreateGroup godoc
// POST /api/groups [signed]
// Body: {"wallet","timestamp","signature","name","on_chain_pubkey"}
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var body struct {
		Name          string `json:"name" binding:"required"`
		OnChainPubkey string `json:"on_chain_pubkey"`
	}
	if err := c.ShouldBindBodyWith(&body, middleware.JSONBinding); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	group, err := h.groups.CreateGroup(c.Request.Context(), body.Name, wallet, body.OnChainPubkey, sig, ts)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, group)
}

// InviteMember godoc
// POST /api/groups/:id/members [signed]
// Body: {"wallet","timestamp","signature","invited_wallet"}
func (h *GroupHandler) InviteMember(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid group id")
		return
	}

	var body struct {
		InvitedWallet string `json:"invited_wallet" binding:"required"`
	}
	if err := c.ShouldBindBodyWith(&body, middleware.JSONBinding); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	member, err := h.groups.InviteMember(c.Request.Context(), groupID, body.InvitedWallet, wallet, sig, ts)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, member)
}

// DeleteGroup godoc
// DELETE /api/groups/:id [signed, admin only]
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid group id")
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	if err := h.groups.DeleteGroup(c.Request.Context(), groupID, wallet, sig, ts); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMyGroups godoc
// GET /api/groups/mine?wallet=...
func (h *GroupHandler) ListMyGroups(c *gin.Context) {
	wallet := c.Query("wallet")
	if wallet == "" {
		respondError(c, http.StatusBadRequest, "validation", "wallet query parameter is required")
		return
	}
	groups, err := h.groups.ListGroupsForUser(c.Request.Context(), wallet)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	page, limit := parsePagination(c)
	respondList(c, groups, len(groups), page, limit)
}
