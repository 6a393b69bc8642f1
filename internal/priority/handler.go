package priority

import (
	"context"
	"net/http"

	"whatsapp_crm_backend/platform/httpkit"
	"whatsapp_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Recalculator is what the handler, the event subscriber and the scheduler call.
type Recalculator interface {
	Recalculate(ctx context.Context, conversationID *uuid.UUID) (Result, error)
}

// RecalculateRequest is the optional body of the trigger endpoint.
type RecalculateRequest struct {
	ConversationID string `json:"conversationId" validate:"omitempty,uuid"`
}

// RecalculateResponse wraps Result with the success flag.
type RecalculateResponse struct {
	Success bool `json:"success"`
	Result
}

// Handler exposes the priority trigger endpoint.
type Handler struct {
	svc Recalculator
	val *validator.Validator
}

// NewHandler creates a priority handler.
func NewHandler(svc Recalculator, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// HandleRecalculate runs a priority pass.
// POST /api/v1/priority/recalculate
func (h *Handler) HandleRecalculate(c *gin.Context) {
	var req RecalculateRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", validator.Fields(err))
		return
	}

	var conversationID *uuid.UUID
	if req.ConversationID != "" {
		id := uuid.MustParse(req.ConversationID)
		conversationID = &id
	}

	res, err := h.svc.Recalculate(c.Request.Context(), conversationID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, RecalculateResponse{Success: true, Result: res})
}
