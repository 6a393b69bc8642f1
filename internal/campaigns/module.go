package campaigns

import (
	apphttp "whatsapp_crm_backend/internal/http"
	"whatsapp_crm_backend/platform/validator"
)

// Module is the campaign module implementing http.Module.
type Module struct {
	dispatcher *Dispatcher
	service    *Service
	handler    *Handler
}

// NewModule wires the campaign dispatcher and control service.
func NewModule(dispatcher *Dispatcher, service *Service, val *validator.Validator) *Module {
	return &Module{
		dispatcher: dispatcher,
		service:    service,
		handler:    NewHandler(dispatcher, service, val),
	}
}

// Dispatcher exposes the tick for the scheduler worker.
func (m *Module) Dispatcher() *Dispatcher { return m.dispatcher }

// Name returns the module identifier.
func (m *Module) Name() string { return "campaigns" }

// RegisterRoutes mounts campaign routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.V1.Group("/campaigns")
	g.POST("/process-queue", m.handler.HandleProcessQueue)
	g.GET("/:id", m.handler.HandleGet)
	for _, action := range []Action{ActionSchedule, ActionStart, ActionPause, ActionResume, ActionCancel} {
		g.POST("/:id/"+string(action), m.handler.HandleAction(action))
	}
}

var _ apphttp.Module = (*Module)(nil)
