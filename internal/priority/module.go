package priority

import (
	apphttp "whatsapp_crm_backend/internal/http"
	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/logger"
	"whatsapp_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the priority engine module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule wires the priority engine against the shared pool.
func NewModule(pool *pgxpool.Pool, reader *signals.Reader, thresholds Thresholds, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(reader, NewRepository(pool), thresholds, log)
	return &Module{
		service: svc,
		handler: NewHandler(svc, val),
	}
}

// Service exposes the engine for the event subscriber and the scheduler worker.
func (m *Module) Service() *Service { return m.service }

// Name returns the module identifier.
func (m *Module) Name() string { return "priority" }

// RegisterRoutes mounts priority routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/priority/recalculate", m.handler.HandleRecalculate)
}

var _ apphttp.Module = (*Module)(nil)
