package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mitra-labs/predcore/internal/api/middleware"
	"github.com/mitra-labs/predcore/internal/service"
)

// EventHandler serves event creation, listing, price, and settlement
// trigger endpoints.
type EventHandler struct {
	events *service.EventService
}

func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// CreateEvent godoc
// POST /api/groups/:id/events [signed]
func (h *EventHandler) CreateEvent(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid group id")
		return
	}

	var body struct {
		Title          string     `json:"title" binding:"required"`
		Description    string     `json:"description"`
		Outcomes       []string   `json:"outcomes" binding:"required"`
		SettlementType string     `json:"settlement_type" binding:"required"`
		ArbiterWallet  string     `json:"arbiter_wallet"`
		ResolveBy      *time.Time `json:"resolve_by"`
	}
	if err := c.ShouldBindBodyWith(&body, middleware.JSONBinding); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	event, err := h.events.CreateEvent(c.Request.Context(), groupID, body.Title, body.Description,
		body.Outcomes, body.SettlementType, wallet, body.ArbiterWallet, body.ResolveBy, sig, ts)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, event)
}

// ListGroupEvents godoc
// GET /api/groups/:id/events
func (h *EventHandler) ListGroupEvents(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid group id")
		return
	}
	events, err := h.events.GetGroupEvents(c.Request.Context(), groupID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	page, limit := parsePagination(c)
	respondList(c, events, len(events), page, limit)
}

// GetEventPrices godoc
// GET /api/events/:id/prices
func (h *EventHandler) GetEventPrices(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid event id")
		return
	}
	prices, err := h.events.GetEventPrices(c.Request.Context(), eventID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, prices)
}

// SettleEvent godoc
// POST /api/events/:id/settle [signed, admin only]
func (h *EventHandler) SettleEvent(c *gin.Context) {
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
	if err := h.events.SettleEvent(c.Request.Context(), eventID, body.Winner, wallet, sig, ts); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteEvent godoc
// DELETE /api/events/:id [signed, admin only]
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid event id")
		return
	}

	wallet := middleware.GetWallet(c)
	sig, ts := middleware.SignatureFields(c)
	if err := h.events.DeleteEvent(c.Request.Context(), eventID, wallet, sig, ts); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
