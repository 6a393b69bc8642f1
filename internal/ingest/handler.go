package ingest

import (
	"context"
	"errors"
	"net/http"

	"whatsapp_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxBodyBytes caps the webhook body read from the provider.
const MaxBodyBytes = 1 << 20

// Ingestor stores one webhook body.
type Ingestor interface {
	Ingest(ctx context.Context, body []byte) (Outcome, error)
}

// WebhookResponse is the body returned for a stored or replayed message.
type WebhookResponse struct {
	Success        bool       `json:"success"`
	Status         string     `json:"status"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
}

// IgnoredResponse is returned with 200 for payloads that are not stored.
type IgnoredResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Handler exposes the provider webhook.
type Handler struct {
	ingestor Ingestor
}

// NewHandler creates a webhook handler.
func NewHandler(ingestor Ingestor) *Handler {
	return &Handler{ingestor: ingestor}
}

// HandleWhatsApp receives provider events. The priority trigger runs in the
// background and never delays the response.
// POST /api/v1/webhooks/whatsapp
func (h *Handler) HandleWhatsApp(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		reason := "unreadable body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = "body too large"
		}
		httpkit.OK(c, IgnoredResponse{Success: true, Status: StatusIgnored, Reason: reason})
		return
	}

	out, err := h.ingestor.Ingest(c.Request.Context(), body)
	if httpkit.HandleError(c, err) {
		return
	}
	if out.Status == StatusIgnored {
		httpkit.OK(c, IgnoredResponse{Success: true, Status: out.Status, Reason: out.Reason})
		return
	}
	httpkit.OK(c, WebhookResponse{Success: true, Status: out.Status, ConversationID: out.ConversationID})
}
