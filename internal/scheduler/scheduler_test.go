package scheduler

import (
	"context"
	"errors"
	"testing"

	"whatsapp_crm_backend/internal/campaigns"
	"whatsapp_crm_backend/internal/events"
	"whatsapp_crm_backend/internal/priority"
	"whatsapp_crm_backend/internal/tags"
	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

func optionValue(opts []asynq.Option, typ asynq.OptionType) (any, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestEnqueuePriorityRecalculationIsAtMostOnce(t *testing.T) {
	enq := &recordingEnqueuer{}
	c := &Client{client: enq, queue: "crm"}
	id := uuid.New()

	if err := c.EnqueuePriorityRecalculation(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TaskPriorityRecalculate {
		t.Fatalf("unexpected tasks %v", enq.tasks)
	}
	if v, ok := optionValue(enq.opts[0], asynq.MaxRetryOpt); !ok || v != 0 {
		t.Fatalf("expected MaxRetry(0), got %v", v)
	}
	if v, ok := optionValue(enq.opts[0], asynq.QueueOpt); !ok || v != "crm" {
		t.Fatalf("expected queue crm, got %v", v)
	}

	payload, err := ParseRecalculatePayload(enq.tasks[0])
	if err != nil || payload.TargetID == nil || *payload.TargetID != id {
		t.Fatalf("unexpected payload %+v %v", payload, err)
	}
}

func TestEnqueueTagRecalculationFullPass(t *testing.T) {
	enq := &recordingEnqueuer{}
	c := &Client{client: enq, queue: "crm"}

	if err := c.EnqueueTagRecalculation(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TaskTagsRecalculate {
		t.Fatalf("unexpected tasks %v", enq.tasks)
	}
	if v, ok := optionValue(enq.opts[0], asynq.MaxRetryOpt); !ok || v != 0 {
		t.Fatalf("expected MaxRetry(0), got %v", v)
	}
	payload, err := ParseRecalculatePayload(enq.tasks[0])
	if err != nil || payload.TargetID != nil {
		t.Fatalf("expected a full-pass payload, got %+v %v", payload, err)
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	if err := c.EnqueuePriorityRecalculation(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBusTriggerEnqueuesIngestedConversation(t *testing.T) {
	enq := &recordingEnqueuer{}
	bus := events.NewInMemoryBus(logger.Discard())
	priority.Subscribe(bus, &Client{client: enq, queue: "default"})
	id := uuid.New()

	bus.Publish(context.Background(), events.MessageIngested{ConversationID: id})
	bus.Wait()

	if len(enq.tasks) != 1 {
		t.Fatalf("expected one enqueued task, got %d", len(enq.tasks))
	}
	payload, _ := ParseRecalculatePayload(enq.tasks[0])
	if payload.TargetID == nil || *payload.TargetID != id {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestParseRecalculatePayloadEmptyIsFullPass(t *testing.T) {
	payload, err := ParseRecalculatePayload(asynq.NewTask(TaskTagsRecalculate, nil))
	if err != nil || payload.TargetID != nil {
		t.Fatalf("expected full pass, got %+v %v", payload, err)
	}
	if _, err := ParseRecalculatePayload(asynq.NewTask(TaskTagsRecalculate, []byte("{"))); err == nil {
		t.Fatalf("expected decode error")
	}
}

type fakeTicker struct {
	calls int
	err   error
}

func (f *fakeTicker) Tick(context.Context) (campaigns.TickResult, error) {
	f.calls++
	return campaigns.TickResult{Sent: 1}, f.err
}

type fakeTags struct{ got []*uuid.UUID }

func (f *fakeTags) Recalculate(_ context.Context, id *uuid.UUID) (tags.Result, error) {
	f.got = append(f.got, id)
	return tags.Result{ClientsProcessed: 1}, nil
}

type fakePriority struct {
	got []*uuid.UUID
	err error
}

func (f *fakePriority) Recalculate(_ context.Context, id *uuid.UUID) (priority.Result, error) {
	f.got = append(f.got, id)
	return priority.Result{}, f.err
}

func TestMuxRoutesTasks(t *testing.T) {
	ticker, tg, pr := &fakeTicker{}, &fakeTags{}, &fakePriority{}
	mux := newMux(Handlers{Campaigns: ticker, Tags: tg, Priority: pr}, logger.Discard())
	ctx := context.Background()

	if err := mux.ProcessTask(ctx, NewCampaignTickTask()); err != nil || ticker.calls != 1 {
		t.Fatalf("expected tick, got %v", err)
	}

	tagsTask, _ := NewTagsRecalculateTask(RecalculatePayload{})
	if err := mux.ProcessTask(ctx, tagsTask); err != nil || len(tg.got) != 1 || tg.got[0] != nil {
		t.Fatalf("expected full tag pass, got %v %v", err, tg.got)
	}

	id := uuid.New()
	prioTask, _ := NewPriorityRecalculateTask(RecalculatePayload{TargetID: &id})
	if err := mux.ProcessTask(ctx, prioTask); err != nil || len(pr.got) != 1 || *pr.got[0] != id {
		t.Fatalf("expected single rescore, got %v %v", err, pr.got)
	}
}

func TestMuxFailuresAreNotRetried(t *testing.T) {
	ticker := &fakeTicker{err: apperr.Configuration("whatsapp gateway is not configured")}
	mux := newMux(Handlers{Campaigns: ticker}, logger.Discard())

	err := mux.ProcessTask(context.Background(), NewCampaignTickTask())
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestMuxIgnoresVanishedConversation(t *testing.T) {
	pr := &fakePriority{err: apperr.NotFound("conversation not found")}
	mux := newMux(Handlers{Priority: pr}, logger.Discard())
	id := uuid.New()
	task, _ := NewPriorityRecalculateTask(RecalculatePayload{TargetID: &id})

	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("expected nil for a vanished target, got %v", err)
	}
}

func TestPeriodicEntriesSkipsDisabledCadence(t *testing.T) {
	cfg := &config.Config{CampaignTickCron: "@every 1m", TagsRecalcCron: "", PriorityRecalcCron: "*/30 * * * *"}

	entries, err := PeriodicEntries(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].Task.Type() != TaskCampaignTick || entries[1].Task.Type() != TaskPriorityRecalculate {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@cache:6380/2", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Addr != "cache:6380" || opt.Password != "secret" || opt.DB != 2 || opt.TLSConfig != nil {
		t.Fatalf("unexpected opt %+v", opt)
	}

	opt, err = redisClientOpt("rediss://cache:6380/0", true)
	if err != nil || opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("expected insecure TLS, got %+v %v", opt, err)
	}

	if _, err := redisClientOpt("not a url", false); err == nil {
		t.Fatalf("expected parse error")
	}
}
