package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"

	"whatsapp_crm_backend/internal/priority"
	"whatsapp_crm_backend/internal/tags"
	"whatsapp_crm_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues background recalculations. Every task is enqueued with
// no retries: delivery is at-most-once.
type Client struct {
	client enqueuer
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePriorityRecalculation queues a rescore of one conversation.
func (c *Client) EnqueuePriorityRecalculation(ctx context.Context, conversationID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewPriorityRecalculateTask(RecalculatePayload{TargetID: &conversationID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(0))
	return err
}

// EnqueueTagRecalculation queues a tag pass. A nil clientID means every client.
func (c *Client) EnqueueTagRecalculation(ctx context.Context, clientID *uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewTagsRecalculateTask(RecalculatePayload{TargetID: clientID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(0))
	return err
}

// TriggerConversation implements priority.Trigger.
func (c *Client) TriggerConversation(ctx context.Context, conversationID uuid.UUID) error {
	return c.EnqueuePriorityRecalculation(ctx, conversationID)
}

var (
	_ priority.Trigger = (*Client)(nil)
	_ tags.Enqueuer    = (*Client)(nil)
)

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// NewRedisClient opens a go-redis client for the same URL asynq uses.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}
