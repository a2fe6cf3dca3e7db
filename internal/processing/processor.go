// Package processing runs the in-process audit pipeline used when no Redis
// is configured. Events go through a buffered channel to a small pool of
// goroutines that hand them to a Recorder.
package processing

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/linksigner/internal/model"
)

var (
	// ErrQueueFull is returned by PublishLinkIssued when the buffer is full.
	ErrQueueFull = errors.New("audit queue full")
	// ErrStopped is returned by PublishLinkIssued once the workers have
	// begun shutting down.
	ErrStopped = errors.New("audit processor stopped")
)

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, rec model.LinkRecord) error
}

// Processor consumes link events and records them.
type Processor struct {
	recorder Recorder
	logger   *zap.Logger
	queue    chan model.LinkRecord
	workers  int
	wg       sync.WaitGroup
	once     sync.Once

	mu     sync.RWMutex
	closed bool
}

// New builds a Processor with queue capacity tied to worker count.
func New(recorder Recorder, workers int, logger *zap.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		recorder: recorder,
		logger:   logger,
		queue:    make(chan model.LinkRecord, workers*16),
		workers:  workers,
	}
}

// Start launches the worker goroutines. Later calls are no-ops. Workers
// drain what is already buffered once ctx is cancelled, then exit.
func (p *Processor) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

// Wait blocks until every worker has exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Submit queues rec without blocking. It reports false, after logging, when
// the event was dropped because the buffer is full or the processor stopped.
func (p *Processor) Submit(rec model.LinkRecord) bool {
	return p.enqueue(rec) == nil
}

// PublishLinkIssued is Submit with the publisher signature used by the
// server.
func (p *Processor) PublishLinkIssued(_ context.Context, rec model.LinkRecord) error {
	return p.enqueue(rec)
}

// enqueue sends under the read lock so nothing lands in the buffer after
// close, which workers call before their final drain.
func (p *Processor) enqueue(rec model.LinkRecord) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("audit processor stopped, dropping link event", zap.String("link_id", rec.ID))
		return ErrStopped
	}
	select {
	case p.queue <- rec:
		return nil
	default:
		p.logger.Warn("audit queue full, dropping link event", zap.String("link_id", rec.ID))
		return ErrQueueFull
	}
}

func (p *Processor) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.close()
			p.drain()
			return
		case rec := <-p.queue:
			p.process(ctx, rec)
		}
	}
}

func (p *Processor) drain() {
	for {
		select {
		case rec := <-p.queue:
			p.process(context.Background(), rec)
		default:
			return
		}
	}
}

func (p *Processor) process(ctx context.Context, rec model.LinkRecord) {
	if err := p.recorder.Record(ctx, rec); err != nil {
		p.logger.Error("record link event failed", zap.String("link_id", rec.ID), zap.Error(err))
		return
	}
	p.logger.Debug("link event recorded", zap.String("link_id", rec.ID), zap.String("route", rec.Route))
}
