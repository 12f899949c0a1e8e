package bulk

import (
	"context"
	"errors"
	"io"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcollect/nfcollect/producer/nel"
	"github.com/nfcollect/nfcollect/transport"
)

type fakeStore struct {
	lock       sync.Mutex
	dials      int
	closes     int
	failDial   error
	failWrites int
	failClose  error
	// closeCtxErrs holds ctx.Err() as seen by each Close
	closeCtxErrs []error
	written      []nel.Batch
	block        chan struct{}
	started      chan struct{}
}

func (s *fakeStore) dial(ctx context.Context) (transport.Writer, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.dials++
	if s.failDial != nil {
		return nil, s.failDial
	}
	return &fakeWriter{store: s}, nil
}

func (s *fakeStore) batches() []nel.Batch {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]nel.Batch(nil), s.written...)
}

type fakeWriter struct {
	store *fakeStore
}

func (w *fakeWriter) Write(ctx context.Context, batch nel.Batch) error {
	s := w.store
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.failWrites > 0 {
		s.failWrites--
		return errors.New("connection reset")
	}
	s.written = append(s.written, batch)
	return nil
}

func (w *fakeWriter) Close(ctx context.Context) error {
	w.store.lock.Lock()
	defer w.store.lock.Unlock()
	w.store.closes++
	w.store.closeCtxErrs = append(w.store.closeCtxErrs, ctx.Err())
	return w.store.failClose
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func batchOf(n int, port uint16) nel.Batch {
	batch := make(nel.Batch, n)
	for i := range batch {
		batch[i] = nel.Event{
			EventTime: int64(i),
			SrcAddr:   netip.MustParseAddr("10.0.0.1"),
			DstAddr:   netip.MustParseAddr("10.0.0.2"),
			DstPort:   port,
		}
	}
	return batch
}

func newTestPool(t *testing.T, store *fakeStore, cfg PoolConfig) *Pool {
	t.Helper()
	cfg.Dial = store.dial
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	if cfg.Name == "" {
		cfg.Name = t.Name()
	}
	pool, err := NewPool(cfg)
	require.NoError(t, err)
	return pool
}

func TestPoolCommits(t *testing.T) {
	store := &fakeStore{}
	pool := newTestPool(t, store, PoolConfig{Workers: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(ctx, batchOf(3, uint16(i))))
	}
	require.NoError(t, pool.Drain(ctx))

	stats := pool.Stats()
	assert.Equal(t, uint64(5), stats.Submitted)
	assert.Equal(t, uint64(5), stats.Committed)
	assert.Len(t, store.batches(), 5)

	require.NoError(t, pool.Close(ctx))
	// each worker that wrote opened exactly one connection
	assert.LessOrEqual(t, store.dials, 2)
	assert.Equal(t, store.dials, store.closes)
}

func TestPoolSingleWorkerOrder(t *testing.T) {
	store := &fakeStore{}
	pool := newTestPool(t, store, PoolConfig{Workers: 1})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(ctx, batchOf(1, uint16(i))))
	}
	require.NoError(t, pool.Drain(ctx))

	batches := store.batches()
	require.Len(t, batches, 10)
	for i, b := range batches {
		assert.Equal(t, uint16(i), b[0].DstPort)
	}
	require.NoError(t, pool.Close(ctx))
}

func TestPoolBackpressure(t *testing.T) {
	store := &fakeStore{block: make(chan struct{}), started: make(chan struct{}, 10)}
	pool := newTestPool(t, store, PoolConfig{Workers: 1})
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, batchOf(1, 1)))
	<-store.started // the only worker is now busy

	require.NoError(t, pool.Submit(ctx, batchOf(1, 2)))
	assert.Equal(t, 1, pool.QueueDepth())

	done := make(chan error, 1)
	go func() {
		done <- pool.Submit(ctx, batchOf(1, 3))
	}()
	select {
	case <-done:
		t.Fatal("submit returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	store.block <- struct{}{}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submit still blocked after a worker freed a slot")
	}

	close(store.block)
	require.NoError(t, pool.Drain(ctx))
	assert.Equal(t, uint64(3), pool.Stats().Committed)
	require.NoError(t, pool.Close(ctx))
}

func TestPoolSubmitContext(t *testing.T) {
	store := &fakeStore{block: make(chan struct{}), started: make(chan struct{}, 10)}
	pool := newTestPool(t, store, PoolConfig{Workers: 1})

	require.NoError(t, pool.Submit(context.Background(), batchOf(1, 1)))
	<-store.started
	require.NoError(t, pool.Submit(context.Background(), batchOf(1, 2)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, batchOf(1, 3))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(store.block)
	require.NoError(t, pool.Drain(context.Background()))
	assert.Equal(t, uint64(2), pool.Stats().Committed)
	require.NoError(t, pool.Close(context.Background()))
}

func TestPoolDropPolicy(t *testing.T) {
	store := &fakeStore{block: make(chan struct{}), started: make(chan struct{}, 10)}
	pool := newTestPool(t, store, PoolConfig{Workers: 1, Policy: PolicyDrop})
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, batchOf(1, 1)))
	<-store.started
	require.NoError(t, pool.Submit(ctx, batchOf(1, 2)))

	err := pool.Submit(ctx, batchOf(1, 3))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), pool.Stats().Dropped)

	close(store.block)
	require.NoError(t, pool.Drain(ctx))
	assert.Equal(t, uint64(2), pool.Stats().Committed)
	require.NoError(t, pool.Close(ctx))
}

func TestPoolRetryReconnects(t *testing.T) {
	store := &fakeStore{failWrites: 2}
	pool := newTestPool(t, store, PoolConfig{Workers: 1})
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, batchOf(4, 1)))
	require.NoError(t, pool.Drain(ctx))

	assert.Equal(t, uint64(1), pool.Stats().Committed)
	assert.Len(t, store.batches(), 1)
	// one connection per attempt, the failed ones were closed
	assert.Equal(t, 3, store.dials)
	require.NoError(t, pool.Close(ctx))
	assert.Equal(t, 3, store.closes)
}

func TestPoolRetryGivesUp(t *testing.T) {
	store := &fakeStore{failDial: errors.New("connection refused")}
	pool := newTestPool(t, store, PoolConfig{Workers: 1, MaxRetryElapsed: 30 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, batchOf(1, 1)))
	require.NoError(t, pool.Drain(ctx))
	assert.Equal(t, uint64(1), pool.Stats().Dropped)
	assert.Greater(t, store.dials, 1)
	require.NoError(t, pool.Close(ctx))
}

func TestPoolReconnectLogsCloseError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	store := &fakeStore{failWrites: 1, failClose: errors.New("broken pipe")}
	pool := newTestPool(t, store, PoolConfig{Workers: 1, Logger: logger})
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, batchOf(1, 1)))
	require.NoError(t, pool.Drain(ctx))
	assert.Equal(t, uint64(1), pool.Stats().Committed)

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "error closing failed store connection" {
			logged = true
			assert.Equal(t, logrus.DebugLevel, entry.Level)
			assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "broken pipe")
		}
	}
	assert.True(t, logged)
	require.NoError(t, pool.Close(ctx))
}

func TestPoolCloseWriterAfterCancel(t *testing.T) {
	store := &fakeStore{block: make(chan struct{}), started: make(chan struct{}, 10)}
	pool := newTestPool(t, store, PoolConfig{Workers: 1})

	require.NoError(t, pool.Submit(context.Background(), batchOf(1, 1)))
	<-store.started

	// the write is cut by the expired close, its connection is still
	// closed with a live context
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Close(ctx), context.DeadlineExceeded)

	store.lock.Lock()
	defer store.lock.Unlock()
	require.Equal(t, 1, store.closes)
	assert.NoError(t, store.closeCtxErrs[0])
}

func TestPoolCloseAbandonsRetries(t *testing.T) {
	store := &fakeStore{failDial: errors.New("connection refused")}
	pool := newTestPool(t, store, PoolConfig{Workers: 1})

	require.NoError(t, pool.Submit(context.Background(), batchOf(1, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(1), pool.Stats().Dropped)

	assert.ErrorIs(t, pool.Submit(context.Background(), batchOf(1, 2)), ErrClosed)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyBlock, p)

	p, err = ParsePolicy("DROP")
	require.NoError(t, err)
	assert.Equal(t, PolicyDrop, p)
	assert.Equal(t, "drop", p.String())

	_, err = ParsePolicy("spill")
	assert.Error(t, err)
}
