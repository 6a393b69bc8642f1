package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp_crm_backend/internal/campaigns"
	"whatsapp_crm_backend/internal/priority"
	"whatsapp_crm_backend/internal/tags"
	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// CampaignTicker advances the campaign queue.
type CampaignTicker interface {
	Tick(ctx context.Context) (campaigns.TickResult, error)
}

// TagRecalculator runs tag passes.
type TagRecalculator interface {
	Recalculate(ctx context.Context, clientID *uuid.UUID) (tags.Result, error)
}

// PriorityRecalculator runs priority passes.
type PriorityRecalculator interface {
	Recalculate(ctx context.Context, conversationID *uuid.UUID) (priority.Result, error)
}

// Handlers are the services the worker drives.
type Handlers struct {
	Campaigns CampaignTicker
	Tags      TagRecalculator
	Priority  PriorityRecalculator
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handlers Handlers, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	return &Worker{
		server: server,
		mux:    newMux(handlers, log),
		log:    log,
	}, nil
}

type taskHandlers struct {
	Handlers
	log *logger.Logger
}

func newMux(h Handlers, log *logger.Logger) *asynq.ServeMux {
	th := &taskHandlers{Handlers: h, log: log.Component("scheduler")}
	mux := asynq.NewServeMux()
	if h.Campaigns != nil {
		mux.HandleFunc(TaskCampaignTick, th.handleCampaignTick)
	}
	if h.Tags != nil {
		mux.HandleFunc(TaskTagsRecalculate, th.handleTagsRecalculate)
	}
	if h.Priority != nil {
		mux.HandleFunc(TaskPriorityRecalculate, th.handlePriorityRecalculate)
	}
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (h *taskHandlers) handleCampaignTick(ctx context.Context, task *asynq.Task) error {
	start := time.Now()
	res, err := h.Campaigns.Tick(ctx)
	if err != nil {
		return h.fail(ctx, task, err)
	}
	h.log.WithContext(ctx).Info("campaign tick task done",
		"sent", res.Sent,
		"failed", res.Failed,
		"completed", res.Completed,
		"took", time.Since(start),
	)
	return nil
}

func (h *taskHandlers) handleTagsRecalculate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRecalculatePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	res, err := h.Tags.Recalculate(ctx, payload.TargetID)
	if err != nil {
		return h.fail(ctx, task, err)
	}
	h.log.WithContext(ctx).Info("tag recalculation task done",
		"clients", res.ClientsProcessed,
		"created", res.TagsCreated,
		"chunksFailed", res.ChunksFailed,
	)
	return nil
}

func (h *taskHandlers) handlePriorityRecalculate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRecalculatePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	res, err := h.Priority.Recalculate(ctx, payload.TargetID)
	if err != nil {
		return h.fail(ctx, task, err)
	}
	h.log.WithContext(ctx).Info("priority recalculation task done",
		"processed", res.ConversationsProcessed,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return nil
}

// fail logs the error and stops asynq from retrying. A rescore of a
// conversation that no longer exists is not an error at all.
func (h *taskHandlers) fail(ctx context.Context, task *asynq.Task, err error) error {
	if apperr.Is(err, apperr.KindNotFound) {
		h.log.WithContext(ctx).Debug("task target gone", "task", task.Type(), "error", err)
		return nil
	}
	h.log.WithContext(ctx).Error("task failed", "task", task.Type(), "error", err)
	if errors.Is(err, asynq.SkipRetry) {
		return err
	}
	return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
}
