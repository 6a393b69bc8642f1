package priority

import (
	"context"

	"whatsapp_crm_backend/internal/events"

	"github.com/google/uuid"
)

// Trigger starts a rescore of one conversation. Implementations either run
// it in-process or hand it to a task queue.
type Trigger interface {
	TriggerConversation(ctx context.Context, conversationID uuid.UUID) error
}

type inProcessTrigger struct {
	svc Recalculator
}

// InProcess returns a Trigger that rescores synchronously inside the
// subscriber goroutine.
func InProcess(svc Recalculator) Trigger {
	return inProcessTrigger{svc: svc}
}

func (t inProcessTrigger) TriggerConversation(ctx context.Context, conversationID uuid.UUID) error {
	_, err := t.svc.Recalculate(ctx, &conversationID)
	return err
}

// Subscribe registers handlers that trigger a rescore when new traffic lands
// on a conversation. Delivery follows the bus and is best-effort.
func Subscribe(bus events.Bus, trigger Trigger) {
	bus.Subscribe(events.MessageIngested{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.MessageIngested)
		if !ok {
			return nil
		}
		return trigger.TriggerConversation(ctx, ev.ConversationID)
	}))

	bus.Subscribe(events.CampaignRecipientProcessed{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.CampaignRecipientProcessed)
		if !ok || !ev.Sent || ev.ConversationID == nil {
			return nil
		}
		return trigger.TriggerConversation(ctx, *ev.ConversationID)
	}))
}
