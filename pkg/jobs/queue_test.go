package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/edu-portal-api/pkg/config"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.Kind)
		if len(seen) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	}

	q := NewQueue("test", handler, config.AuditConfig{Workers: 2, BufferSize: 8}, zap.NewNop())
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Kind: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Kind: "b"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs not processed in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, config.AuditConfig{}, zap.NewNop())

	err := q.Enqueue(Job{ID: "1"})
	require.Error(t, err)
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		select {
		case <-done:
		default:
			close(done)
		}
		return nil
	}

	q := NewQueue("test", handler, config.AuditConfig{Workers: 1, BufferSize: 4, MaxRetries: 3}, zap.NewNop())
	q.retryDelay = 10 * time.Millisecond
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Kind: "flaky"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded after retry")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestQueueStopIsIdempotent(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, config.AuditConfig{}, zap.NewNop())
	q.Start(context.Background())
	q.Stop()
	q.Stop()
}
