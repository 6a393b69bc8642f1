package tags

import (
	apphttp "whatsapp_crm_backend/internal/http"
	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/logger"
	"whatsapp_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tag engine module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule wires the tag engine against the shared pool.
func NewModule(pool *pgxpool.Pool, reader *signals.Reader, thresholds Thresholds, chunkSize int, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(reader, NewRepository(pool), thresholds, log, WithChunkSize(chunkSize))
	return &Module{
		service: svc,
		handler: NewHandler(svc, val),
	}
}

// UseQueue lets callers ask for the pass to run on the background worker.
func (m *Module) UseQueue(q Enqueuer) { m.handler.queue = q }

// Service exposes the engine for the scheduler worker.
func (m *Module) Service() *Service { return m.service }

// Name returns the module identifier.
func (m *Module) Name() string { return "tags" }

// RegisterRoutes mounts tag routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/tags/recalculate", m.handler.HandleRecalculate)
}

var _ apphttp.Module = (*Module)(nil)
