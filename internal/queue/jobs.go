// Package queue defines the task contract between the bucket-notification
// listener and the optimizer worker pool.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// OptimizeImageTask is scheduled once per completed raw-bucket write.
	OptimizeImageTask = "image:optimize"
)

// OptimizePayload tells the worker which object to process. The caller
// context is not duplicated here; the worker reads it from the object's own
// metadata, which is the authoritative copy.
type OptimizePayload struct {
	ObjectKey string `json:"object_key"`
}

// Client wraps an asynq client behind the small interface the listener needs.
type Client struct {
	inner *asynq.Client
}

// NewClient constructs a Client.
func NewClient(inner *asynq.Client) *Client {
	return &Client{inner: inner}
}

// Enqueue schedules an optimize job for the object key.
func (c *Client) Enqueue(ctx context.Context, objectKey string) error {
	data, err := json.Marshal(OptimizePayload{ObjectKey: objectKey})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(OptimizeImageTask, data)
	if _, err := c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue optimize task: %w", err)
	}
	return nil
}
