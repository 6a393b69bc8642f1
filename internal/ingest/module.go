package ingest

import (
	"whatsapp_crm_backend/internal/conversations"
	"whatsapp_crm_backend/internal/events"
	apphttp "whatsapp_crm_backend/internal/http"
	"whatsapp_crm_backend/platform/logger"
)

// Module is the webhook ingestor implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule wires the ingestor over the shared conversation store.
func NewModule(recorder conversations.Recorder, bus events.Bus, log *logger.Logger) *Module {
	svc := NewService(recorder, bus, log)
	return &Module{service: svc, handler: NewHandler(svc)}
}

// Service exposes the ingestor.
func (m *Module) Service() *Service { return m.service }

// Name returns the module identifier.
func (m *Module) Name() string { return "ingest" }

// RegisterRoutes mounts the provider webhook on the rate-limited group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/whatsapp", m.handler.HandleWhatsApp)
}

var _ apphttp.Module = (*Module)(nil)
