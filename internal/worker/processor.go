// Package worker consumes link audit tasks from asynq and records them.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/linksigner/internal/processing"
	"github.com/dharsanguruparan/linksigner/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	recorder processing.Recorder
	logger   *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(recorder processing.Recorder, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{recorder: recorder, logger: logger}
}

// Handler registers the link audit handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.LinkIssuedTask, p.handleLinkIssued)
	return mux
}

func (p *Processor) handleLinkIssued(ctx context.Context, task *asynq.Task) error {
	rec, err := queue.DecodeLinkIssued(task)
	if err != nil {
		// A payload that cannot be decoded will never succeed.
		p.logger.Error("discarding malformed link event", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := p.recorder.Record(ctx, rec); err != nil {
		p.logger.Warn("record link event failed", zap.String("link_id", rec.ID), zap.Error(err))
		return fmt.Errorf("record link %s: %w", rec.ID, err)
	}
	p.logger.Info("link event recorded",
		zap.String("link_id", rec.ID),
		zap.String("route", rec.Route),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return nil
}
