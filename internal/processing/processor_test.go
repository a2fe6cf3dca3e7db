package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dharsanguruparan/linksigner/internal/model"
)

type fakeRecorder struct {
	mu   sync.Mutex
	recs []model.LinkRecord
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, rec model.LinkRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

func TestProcessorRecordsEvents(t *testing.T) {
	rec := &fakeRecorder{}
	p := New(rec, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.PublishLinkIssued(ctx, model.LinkRecord{ID: id}))
	}

	assert.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, 5*time.Millisecond)
}

func TestProcessorDrainsOnShutdown(t *testing.T) {
	rec := &fakeRecorder{}
	p := New(rec, 1, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.PublishLinkIssued(context.Background(), model.LinkRecord{ID: string(rune('a' + i))}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)
	p.Wait()

	assert.Equal(t, 5, rec.count())
}

func TestProcessorRejectsAfterShutdown(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rec := &fakeRecorder{}
	p := New(rec, 2, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	require.NoError(t, p.PublishLinkIssued(ctx, model.LinkRecord{ID: "before"}))
	cancel()
	p.Wait()

	err := p.PublishLinkIssued(context.Background(), model.LinkRecord{ID: "after"})
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, p.Submit(model.LinkRecord{ID: "late"}))
	assert.Equal(t, 1, rec.count())
	assert.Empty(t, p.queue)
	assert.Equal(t, 2, logs.FilterMessage("audit processor stopped, dropping link event").Len())
}

func TestProcessorDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := New(&fakeRecorder{}, 1, zap.New(core))

	var err error
	for i := 0; i <= cap(p.queue); i++ {
		err = p.PublishLinkIssued(context.Background(), model.LinkRecord{ID: "x"})
	}
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, p.Submit(model.LinkRecord{ID: "y"}))
	assert.Equal(t, 2, logs.FilterMessage("audit queue full, dropping link event").Len())
}

func TestProcessorLogsRecorderErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	p := New(&fakeRecorder{err: errors.New("disk full")}, 1, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	require.NoError(t, p.PublishLinkIssued(ctx, model.LinkRecord{ID: "a"}))

	assert.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	p.Wait()
}
