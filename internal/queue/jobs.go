// Package queue carries link audit events over asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/linksigner/internal/model"
)

const (
	// LinkIssuedTask is enqueued each time a link is signed.
	LinkIssuedTask = "link:issued"

	maxRetry = 5
)

// NewLinkIssuedTask serializes rec into a task.
func NewLinkIssuedTask(rec model.LinkRecord) (*asynq.Task, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(LinkIssuedTask, data), nil
}

// DecodeLinkIssued parses the payload of a LinkIssuedTask.
func DecodeLinkIssued(task *asynq.Task) (model.LinkRecord, error) {
	var rec model.LinkRecord
	if err := json.Unmarshal(task.Payload(), &rec); err != nil {
		return model.LinkRecord{}, fmt.Errorf("decode payload: %w", err)
	}
	if rec.ID == "" {
		return model.LinkRecord{}, fmt.Errorf("decode payload: missing link id")
	}
	return rec, nil
}

// Enqueuer is the part of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher sends audit events to the worker.
type Publisher struct {
	client Enqueuer
}

// NewPublisher wraps an asynq client.
func NewPublisher(client Enqueuer) *Publisher {
	return &Publisher{client: client}
}

// PublishLinkIssued enqueues an audit event for rec.
func (p *Publisher) PublishLinkIssued(ctx context.Context, rec model.LinkRecord) error {
	task, err := NewLinkIssuedTask(rec)
	if err != nil {
		return err
	}
	if _, err := p.client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry), asynq.TaskID(rec.ID)); err != nil {
		return fmt.Errorf("enqueue link issued task: %w", err)
	}
	return nil
}
