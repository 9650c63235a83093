// Package queue schedules document ingestion work over Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/docvault/backend/internal/config"
	"github.com/docvault/backend/internal/models"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Schedule enqueues ingestion for a newly uploaded or reclaimed document.
// It satisfies document.IngestScheduler.
func (c *Client) Schedule(ctx context.Context, doc *models.Document) error {
	return c.EnqueueDocumentIngest(ctx, DocumentIngestPayload{
		DocumentID:  doc.ID.String(),
		WorkspaceID: doc.WorkspaceID.String(),
	})
}

func (c *Client) EnqueueDocumentIngest(ctx context.Context, payload DocumentIngestPayload) error {
	return c.enqueue(ctx, TypeDocumentIngest, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
