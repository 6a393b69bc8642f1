package scheduler

import (
	"context"
	"fmt"
	"time"

	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// PeriodicEntry is one cron registration.
type PeriodicEntry struct {
	Spec string
	Task *asynq.Task
}

// PeriodicEntries builds the fixed cadence from config. Empty specs are
// left out so a deployment can turn a cadence off.
func PeriodicEntries(cfg config.SchedulerConfig) ([]PeriodicEntry, error) {
	tagsTask, err := NewTagsRecalculateTask(RecalculatePayload{})
	if err != nil {
		return nil, err
	}
	priorityTask, err := NewPriorityRecalculateTask(RecalculatePayload{})
	if err != nil {
		return nil, err
	}

	var out []PeriodicEntry
	for _, e := range []PeriodicEntry{
		{Spec: cfg.GetCampaignTickCron(), Task: NewCampaignTickTask()},
		{Spec: cfg.GetTagsRecalcCron(), Task: tagsTask},
		{Spec: cfg.GetPriorityRecalcCron(), Task: priorityTask},
	} {
		if e.Spec != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// Periodic enqueues the cadence tasks on their cron specs.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, loc *time.Location, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	entries, err := PeriodicEntries(cfg)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc})
	for _, e := range entries {
		id, err := s.Register(e.Spec, e.Task, asynq.Queue(queueName(cfg)), asynq.MaxRetry(0))
		if err != nil {
			return nil, fmt.Errorf("register %s (%s): %w", e.Task.Type(), e.Spec, err)
		}
		log.Info("periodic task registered", "task", e.Task.Type(), "spec", e.Spec, "entryId", id)
	}

	return &Periodic{scheduler: s, log: log}, nil
}

// Run starts the scheduler and blocks until ctx is done.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}
	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
