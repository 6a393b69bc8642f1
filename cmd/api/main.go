package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"whatsapp_crm_backend/internal/campaigns"
	"whatsapp_crm_backend/internal/conversations"
	"whatsapp_crm_backend/internal/events"
	apphttp "whatsapp_crm_backend/internal/http"
	"whatsapp_crm_backend/internal/http/router"
	"whatsapp_crm_backend/internal/ingest"
	"whatsapp_crm_backend/internal/priority"
	"whatsapp_crm_backend/internal/scheduler"
	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/internal/tags"
	"whatsapp_crm_backend/internal/whatsapp"
	"whatsapp_crm_backend/migrations"
	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/db"
	"whatsapp_crm_backend/platform/logger"
	"whatsapp_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrationsEnabled {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, migrations.FS)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

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
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	thresholds, err := config.LoadThresholdFile(cfg.GetEngineThresholdsFile())
	if err != nil {
		log.Error("failed to load engine thresholds", "error", err)
		panic("failed to load engine thresholds: " + err.Error())
	}

	// ========================================================================
	// Engines
	// ========================================================================

	reader := signals.NewReader(pool)
	tagsModule := tags.NewModule(pool, reader, tags.DefaultThresholds().WithOverrides(thresholds.Tags), cfg.GetTagChunkSize(), val, log)
	priorityModule := priority.NewModule(pool, reader, priority.DefaultThresholds().WithOverrides(thresholds.Priority), val, log)

	taskClient := newTaskClient(cfg, log)
	defer func() { _ = taskClient.Close() }()
	wirePriorityTrigger(taskClient, eventBus, priorityModule.Service())
	if taskClient != nil {
		tagsModule.UseQueue(taskClient)
	}

	// ========================================================================
	// Conversations, ingest and campaigns
	// ========================================================================

	history := conversations.NewRepository(pool)
	ingestModule := ingest.NewModule(history, eventBus, log)

	dispatcher, closeLocker := newDispatcher(ctx, cfg, pool, history, eventBus, log)
	defer closeLocker()
	campaignsModule := campaigns.NewModule(dispatcher, campaigns.NewService(campaigns.NewRepository(pool), log), val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			ingestModule,
			tagsModule,
			priorityModule,
			campaignsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newTaskClient returns nil when Redis is not configured or the client cannot
// be built; callers then keep the work in-process.
func newTaskClient(cfg *config.Config, log *logger.Logger) *scheduler.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; recalculations run in-process")
		return nil
	}
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client; recalculations run in-process", "error", err)
		return nil
	}
	return client
}

// wirePriorityTrigger routes ingest and campaign events to the priority
// engine: through the task queue when a client exists, otherwise in-process.
func wirePriorityTrigger(client *scheduler.Client, bus events.Bus, svc *priority.Service) {
	if client == nil {
		priority.Subscribe(bus, priority.InProcess(svc))
		return
	}
	priority.Subscribe(bus, client)
}

func newDispatcher(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, history conversations.Recorder, bus events.Bus, log *logger.Logger) (*campaigns.Dispatcher, func()) {
	var sender campaigns.Sender
	if client := whatsapp.NewClient(cfg, log); client != nil {
		sender = client
	} else {
		log.Warn("whatsapp gateway not configured; campaign ticks will fail until it is")
	}

	loc, err := time.LoadLocation(cfg.GetCampaignDefaultTimezone())
	if err != nil {
		log.Warn("invalid campaign default timezone, using UTC", "timezone", cfg.GetCampaignDefaultTimezone(), "error", err)
		loc = time.UTC
	}

	opts := campaigns.DispatcherOptions{
		BatchSize:       cfg.GetCampaignBatchSize(),
		SendTimeout:     cfg.GetWhatsAppSendTimeout(),
		DefaultLocation: loc,
		LockTTL:         cfg.GetCampaignLockTTL(),
	}

	closeFn := func() {}
	if cfg.GetCampaignLockEnabled() {
		rdb, err := scheduler.NewRedisClient(cfg)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize campaign lock: %v", err))
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis not reachable yet for campaign lock", "error", err)
		}
		opts.Locker = campaigns.NewRedisLocker(rdb)
		closeFn = func() { _ = rdb.Close() }
		log.Info("campaign lease lock enabled", "ttl", cfg.GetCampaignLockTTL())
	}

	return campaigns.NewDispatcher(campaigns.NewRepository(pool), sender, history, bus, opts, log), closeFn
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
