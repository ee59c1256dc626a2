package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	cfg := DefaultConfig("test")
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 2
	cfg.HealthCheckInterval = 0
	cfg.WarmupInterval = 0
	cfg.EnableHibernation = false
	p, err := NewPool(FlavorGoroutine, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestSubmitAndGetResult(t *testing.T) {
	p := newTestPool(t)

	id, err := p.Submit(func(ctx context.Context) (any, error) {
		return 42, nil
	}, Options{})
	require.NoError(t, err)

	result, err := p.GetResult(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestSubmitPropagatesError(t *testing.T) {
	p := newTestPool(t)
	boom := assertError("boom")

	id, err := p.Submit(func(ctx context.Context) (any, error) {
		return nil, boom
	}, Options{})
	require.NoError(t, err)

	_, err = p.GetResult(context.Background(), id)
	assert.ErrorIs(t, err, boom)
}

func TestPriorityOrderingRunsHighestFirst(t *testing.T) {
	cfg := DefaultConfig("priority")
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 1
	cfg.HealthCheckInterval = 0
	cfg.WarmupInterval = 0
	cfg.EnableHibernation = false
	p, err := NewPool(FlavorGoroutine, cfg)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string

	block := make(chan struct{})
	_, err = p.Submit(func(ctx context.Context) (any, error) {
		<-block
		mu.Lock()
		order = append(order, "blocker")
		mu.Unlock()
		return nil, nil
	}, Options{Priority: PriorityNormal})
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))

	lowID, err := p.Submit(func(ctx context.Context) (any, error) {
		mu.Lock()
		order = append(order, "low")
		mu.Unlock()
		return nil, nil
	}, Options{Priority: PriorityLow})
	require.NoError(t, err)

	highID, err := p.Submit(func(ctx context.Context) (any, error) {
		mu.Lock()
		order = append(order, "high")
		mu.Unlock()
		return nil, nil
	}, Options{Priority: PriorityHigh})
	require.NoError(t, err)

	close(block)

	_, err = p.GetResult(context.Background(), highID)
	require.NoError(t, err)
	_, err = p.GetResult(context.Background(), lowID)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, "blocker", order[0])
	assert.Equal(t, "high", order[1])
	assert.Equal(t, "low", order[2])

	_ = p.Shutdown(context.Background())
}

func TestAcquireReleaseWorkerAffinity(t *testing.T) {
	p := newTestPool(t)

	id, err := p.AcquireWorker(context.Background(), time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	p.ReleaseWorker(id)

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.IdleWorkers, 1)
}

func TestAcquireWorkerTimesOutWhenExhausted(t *testing.T) {
	cfg := DefaultConfig("exhausted")
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 1
	cfg.HealthCheckInterval = 0
	cfg.WarmupInterval = 0
	cfg.EnableHibernation = false
	p, err := NewPool(FlavorGoroutine, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Shutdown(context.Background())

	id, err := p.AcquireWorker(context.Background(), time.Second)
	require.NoError(t, err)
	defer p.ReleaseWorker(id)

	_, err = p.AcquireWorker(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrAcquireTimeout)
}

func TestShutdownRejectsNewSubmissions(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Shutdown(context.Background()))

	_, err := p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, Options{})
	assert.ErrorIs(t, err, ErrShuttingDown)
}

type assertError string

func (e assertError) Error() string { return string(e) }
