package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"whatsapp_crm_backend/internal/campaigns"
	"whatsapp_crm_backend/internal/conversations"
	"whatsapp_crm_backend/internal/events"
	"whatsapp_crm_backend/internal/priority"
	"whatsapp_crm_backend/internal/scheduler"
	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/internal/tags"
	"whatsapp_crm_backend/internal/whatsapp"
	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/db"
	"whatsapp_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	thresholds, err := config.LoadThresholdFile(cfg.GetEngineThresholdsFile())
	if err != nil {
		log.Error("failed to load engine thresholds", "error", err)
		panic("failed to load engine thresholds: " + err.Error())
	}

	reader := signals.NewReader(pool)
	tagSvc := tags.NewService(reader, tags.NewRepository(pool), tags.DefaultThresholds().WithOverrides(thresholds.Tags), log,
		tags.WithChunkSize(cfg.GetTagChunkSize()))
	prioritySvc := priority.NewService(reader, priority.NewRepository(pool), priority.DefaultThresholds().WithOverrides(thresholds.Priority), log)

	// campaign sends land on the bus; rescore their conversations in this process
	priority.Subscribe(eventBus, priority.InProcess(prioritySvc))

	loc, err := time.LoadLocation(cfg.GetCampaignDefaultTimezone())
	if err != nil {
		log.Warn("invalid campaign default timezone, using UTC", "timezone", cfg.GetCampaignDefaultTimezone(), "error", err)
		loc = time.UTC
	}

	var sender campaigns.Sender
	if client := whatsapp.NewClient(cfg, log); client != nil {
		sender = client
	} else {
		log.Warn("whatsapp gateway not configured; campaign ticks will fail until it is")
	}

	opts := campaigns.DispatcherOptions{
		BatchSize:       cfg.GetCampaignBatchSize(),
		SendTimeout:     cfg.GetWhatsAppSendTimeout(),
		DefaultLocation: loc,
		LockTTL:         cfg.GetCampaignLockTTL(),
	}
	if cfg.GetCampaignLockEnabled() {
		rdb, err := scheduler.NewRedisClient(cfg)
		if err != nil {
			log.Error("failed to initialize campaign lock", "error", err)
			panic("failed to initialize campaign lock: " + err.Error())
		}
		defer func() { _ = rdb.Close() }()
		opts.Locker = campaigns.NewRedisLocker(rdb)
	}
	dispatcher := campaigns.NewDispatcher(campaigns.NewRepository(pool), sender, conversations.NewRepository(pool), eventBus, opts, log)

	worker, err := scheduler.NewWorker(cfg, scheduler.Handlers{
		Campaigns: dispatcher,
		Tags:      tagSvc,
		Priority:  prioritySvc,
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, loc, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		periodic.Run(ctx)
	}()

	worker.Run(ctx)
	wg.Wait()
	eventBus.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
