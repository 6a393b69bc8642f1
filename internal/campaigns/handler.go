package campaigns

import (
	"context"
	"net/http"

	"whatsapp_crm_backend/platform/httpkit"
	"whatsapp_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const errInvalidCampaignID = "invalid campaign ID"

// Ticker advances the campaign queue.
type Ticker interface {
	Tick(ctx context.Context) (TickResult, error)
}

// Controller applies campaign actions.
type Controller interface {
	Get(ctx context.Context, id uuid.UUID) (Campaign, error)
	Apply(ctx context.Context, id uuid.UUID, action Action) (Campaign, error)
}

// TickResponse wraps TickResult with the success flag.
type TickResponse struct {
	Success bool `json:"success"`
	TickResult
}

// CampaignResponse wraps a campaign with the success flag.
type CampaignResponse struct {
	Success  bool     `json:"success"`
	Campaign Campaign `json:"campaign"`
}

// Handler exposes campaign endpoints.
type Handler struct {
	ticker     Ticker
	controller Controller
	val        *validator.Validator
}

// NewHandler creates a campaign handler.
func NewHandler(ticker Ticker, controller Controller, val *validator.Validator) *Handler {
	return &Handler{ticker: ticker, controller: controller, val: val}
}

// HandleProcessQueue runs one dispatcher tick.
// POST /api/v1/campaigns/process-queue
func (h *Handler) HandleProcessQueue(c *gin.Context) {
	res, err := h.ticker.Tick(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, TickResponse{Success: true, TickResult: res})
}

// HandleGet returns status, counters and next send time.
// GET /api/v1/campaigns/:id
func (h *Handler) HandleGet(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}
	campaign, err := h.controller.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, CampaignResponse{Success: true, Campaign: campaign})
}

// HandleAction returns a handler applying action.
// POST /api/v1/campaigns/:id/{schedule|start|pause|resume|cancel}
func (h *Handler) HandleAction(action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.campaignID(c)
		if !ok {
			return
		}
		campaign, err := h.controller.Apply(c.Request.Context(), id, action)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, CampaignResponse{Success: true, Campaign: campaign})
	}
}

func (h *Handler) campaignID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	if err := h.val.Var(raw, "required,uuid"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidCampaignID, nil)
		return uuid.Nil, false
	}
	return uuid.MustParse(raw), true
}
