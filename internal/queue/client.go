package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/rentalshop/internal/config"
)

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueTenantProvision schedules creation and migration of a tenant's
// own database. Duplicate requests for the same tenant collapse.
func (c *Client) EnqueueTenantProvision(ctx context.Context, tenantID uuid.UUID) error {
	return c.enqueue(ctx, TypeTenantProvision, TenantProvisionPayload{TenantID: tenantID.String()},
		asynq.Queue("critical"),
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
		asynq.TaskID("provision:"+tenantID.String()),
	)
}

// EnqueueTenantReprovision queues provisioning again after an earlier task
// failed to enqueue or exhausted its retries. Repeats within a minute
// collapse.
func (c *Client) EnqueueTenantReprovision(ctx context.Context, tenantID uuid.UUID) error {
	return c.enqueue(ctx, TypeTenantProvision, TenantProvisionPayload{TenantID: tenantID.String()},
		asynq.Queue("critical"),
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Minute),
	)
}

// EnqueueExpireTrials runs the trial sweep out of schedule.
func (c *Client) EnqueueExpireTrials(ctx context.Context) error {
	return c.enqueue(ctx, TypeExpireTrials, struct{}{}, asynq.MaxRetry(1), asynq.Timeout(time.Minute))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
