package tags

import (
	"context"
	"net/http"

	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/httpkit"
	"whatsapp_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Recalculator is what the handler and the scheduler call.
type Recalculator interface {
	Recalculate(ctx context.Context, clientID *uuid.UUID) (Result, error)
}

// Enqueuer hands a tag pass to the background worker.
type Enqueuer interface {
	EnqueueTagRecalculation(ctx context.Context, clientID *uuid.UUID) error
}

// RecalculateRequest is the optional body of the trigger endpoint.
// Async queues the pass instead of running it inline; without a queue it is ignored.
type RecalculateRequest struct {
	ClientID string `json:"clientId" validate:"omitempty,uuid"`
	Async    bool   `json:"async"`
}

// RecalculateResponse wraps Result with the success flag.
type RecalculateResponse struct {
	Success bool `json:"success"`
	Result
}

// QueuedResponse is returned with 202 when the pass was handed to the worker.
type QueuedResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// Handler exposes the tag trigger endpoint.
type Handler struct {
	svc   Recalculator
	val   *validator.Validator
	queue Enqueuer
}

// NewHandler creates a tag handler.
func NewHandler(svc Recalculator, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// HandleRecalculate runs a tag pass.
// POST /api/v1/tags/recalculate
func (h *Handler) HandleRecalculate(c *gin.Context) {
	var req RecalculateRequest
	if !httpkit.BindJSON(c, &req) {
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", validator.Fields(err))
		return
	}

	var clientID *uuid.UUID
	if req.ClientID != "" {
		id := uuid.MustParse(req.ClientID)
		clientID = &id
	}

	if req.Async && h.queue != nil {
		if err := h.queue.EnqueueTagRecalculation(c.Request.Context(), clientID); err != nil {
			httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to queue tag pass", err))
			return
		}
		httpkit.JSON(c, http.StatusAccepted, QueuedResponse{Success: true, Status: "queued"})
		return
	}

	res, err := h.svc.Recalculate(c.Request.Context(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, RecalculateResponse{Success: true, Result: res})
}
