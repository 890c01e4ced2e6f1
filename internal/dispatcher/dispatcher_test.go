package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/queue/memory"
	"github.com/JakeFAU/courthouse-harvester/internal/worker"
)

func newInlineWorker(queue harvest.Queue, sink harvest.Sink) *worker.Worker {
	return worker.New(worker.Dependencies{Queue: queue, Sink: sink}, worker.Config{}, zap.NewNop())
}

// TestDispatcherDrainsQueue ensures Run returns once the closed queue is empty.
func TestDispatcherDrainsQueue(t *testing.T) {
	t.Parallel()

	queue := memory.NewQueue(32)
	collector := harvest.NewCollector()
	workers := make([]*worker.Worker, 0, 4)
	for i := 0; i < 4; i++ {
		workers = append(workers, newInlineWorker(queue, collector))
	}
	dispatch := New(queue, workers)
	require.Equal(t, 4, dispatch.Size())

	for i := 0; i < 20; i++ {
		rec := harvest.RawRecord{Name: fmt.Sprintf("court-%02d", i), City: "Ottawa"}
		require.NoError(t, dispatch.Enqueue(context.Background(), harvest.Job{Index: i, Source: harvest.InlineSource(rec)}))
	}
	queue.Close()

	done := make(chan struct{})
	go func() {
		dispatch.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not return after queue drained")
	}

	records := collector.Records()
	require.Len(t, records, 20)
	for i, rec := range records {
		require.Equal(t, fmt.Sprintf("court-%02d", i), rec.Name)
	}
}

// TestDispatcherRunStopsOnCancel ensures workers blocked on the queue exit.
func TestDispatcherRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	dispatch := New(queue, []*worker.Worker{newInlineWorker(queue, harvest.NewCollector())})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	dispatch := New(&errorQueue{err: errors.New("boom")}, nil)
	err := dispatch.Enqueue(context.Background(), harvest.Job{Index: 1})
	require.EqualError(t, err, "queue enqueue: boom")
}

type blockingQueue struct {
	once    sync.Once
	started chan struct{}
}

func (q *blockingQueue) Enqueue(context.Context, harvest.Job) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (harvest.Job, error) {
	q.once.Do(func() { close(q.started) })
	<-ctx.Done()
	return harvest.Job{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, harvest.Job) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (harvest.Job, error) {
	return harvest.Job{}, harvest.ErrQueueClosed
}
