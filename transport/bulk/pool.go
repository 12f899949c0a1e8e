// Package bulk runs the worker pool writing NAT event batches to a store.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/nfcollect/nfcollect/metrics"
	"github.com/nfcollect/nfcollect/producer/nel"
	"github.com/nfcollect/nfcollect/transport"
)

var (
	ErrQueueFull = errors.New("queue full")
	ErrClosed    = errors.New("pool closed")
)

// Policy selects what Submit does when the queue is full.
type Policy uint8

const (
	// PolicyBlock makes Submit wait for a worker to free a slot.
	PolicyBlock Policy = iota
	// PolicyDrop makes Submit discard the batch and return ErrQueueFull.
	PolicyDrop
)

func (p Policy) String() string {
	switch p {
	case PolicyBlock:
		return "block"
	case PolicyDrop:
		return "drop"
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "block":
		return PolicyBlock, nil
	case "drop":
		return PolicyDrop, nil
	}
	return PolicyBlock, fmt.Errorf("unknown queue policy %q", s)
}

const (
	DefaultWorkers         = 1
	DefaultWriteTimeout    = 30 * time.Second
	DefaultInitialInterval = 20 * time.Millisecond
	DefaultMaxInterval     = 30 * time.Second

	closeTimeout = 5 * time.Second
)

type PoolConfig struct {
	Name string
	Dial transport.Dialer

	Workers   int
	QueueSize int // defaults to Workers
	Policy    Policy

	// WriteTimeout bounds each write attempt. Zero disables it.
	WriteTimeout time.Duration
	// MaxRetryElapsed bounds the retries of a batch. Zero retries until the
	// pool is closed.
	MaxRetryElapsed time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration

	Logger logrus.FieldLogger
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	Submitted  uint64
	Committed  uint64
	Dropped    uint64
	QueueDepth int
}

// Pool is a bounded queue of batches consumed by a fixed set of workers.
// Each worker owns one store connection.
type Pool struct {
	cfg    PoolConfig
	queue  chan nel.Batch
	logger logrus.FieldLogger
	metric *metrics.PoolMetric

	ctx    context.Context
	cancel context.CancelFunc

	lock    *sync.RWMutex
	closed  bool
	workers sync.WaitGroup

	pendingLock *sync.Mutex
	pending     int
	waiters     []chan struct{}

	submitted atomic.Uint64
	committed atomic.Uint64
	dropped   atomic.Uint64
}

// NewPool starts the workers. Connections are opened by each worker when it
// receives its first batch.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Dial == nil {
		return nil, errors.New("dialer is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:         cfg,
		queue:       make(chan nel.Batch, cfg.QueueSize),
		logger:      cfg.Logger.WithField("store", cfg.Name),
		metric:      metrics.NewPoolMetric(cfg.Name),
		ctx:         ctx,
		cancel:      cancel,
		lock:        &sync.RWMutex{},
		pendingLock: &sync.Mutex{},
	}
	for i := 0; i < cfg.Workers; i++ {
		w := &worker{
			pool:   p,
			logger: p.logger.WithField("worker", i),
		}
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			w.run()
		}()
	}
	return p, nil
}

func (p *Pool) Name() string {
	return p.cfg.Name
}

func (p *Pool) Policy() Policy {
	return p.cfg.Policy
}

func (p *Pool) addPending(delta int) {
	p.pendingLock.Lock()
	defer p.pendingLock.Unlock()
	p.pending += delta
	if p.pending == 0 {
		for _, w := range p.waiters {
			close(w)
		}
		p.waiters = nil
	}
}

// Submit hands the batch over to the workers. The caller must not modify
// the batch afterwards. When the queue is full, Submit blocks or drops
// according to the policy.
func (p *Pool) Submit(ctx context.Context, batch nel.Batch) error {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.addPending(1)

	if p.cfg.Policy == PolicyDrop {
		select {
		case p.queue <- batch:
		default:
			p.addPending(-1)
			p.dropped.Add(1)
			p.metric.Dropped()
			return ErrQueueFull
		}
	} else {
		select {
		case p.queue <- batch:
		case <-ctx.Done():
			p.addPending(-1)
			return ctx.Err()
		case <-p.ctx.Done():
			p.addPending(-1)
			return ErrClosed
		}
	}
	p.submitted.Add(1)
	p.metric.Submitted()
	p.metric.QueueDepth(len(p.queue))
	return nil
}

// Drain waits until every submitted batch was committed or dropped.
func (p *Pool) Drain(ctx context.Context) error {
	p.pendingLock.Lock()
	if p.pending == 0 {
		p.pendingLock.Unlock()
		return nil
	}
	w := make(chan struct{})
	p.waiters = append(p.waiters, w)
	p.pendingLock.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth returns the number of batches waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Submitted:  p.submitted.Load(),
		Committed:  p.committed.Load(),
		Dropped:    p.dropped.Load(),
		QueueDepth: p.QueueDepth(),
	}
}

// Close stops accepting batches and waits for the queue to be processed.
// When ctx expires first, pending retries are abandoned and the remaining
// batches are dropped.
func (p *Pool) Close(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.cancel)
	defer stop()

	p.lock.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.lock.Unlock()

	p.workers.Wait()
	p.cancel()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("closing %s store: %w", p.cfg.Name, err)
	}
	return nil
}

type worker struct {
	pool   *Pool
	logger logrus.FieldLogger
	writer transport.Writer
}

func (w *worker) run() {
	for batch := range w.pool.queue {
		w.pool.metric.QueueDepth(len(w.pool.queue))
		w.process(batch)
	}
	if w.writer != nil {
		if err := w.closeWriter(); err != nil {
			w.logger.WithError(err).Warn("error closing store connection")
		}
	}
}

// closeWriter closes the connection with its own deadline since the pool
// context may already be cancelled.
func (w *worker) closeWriter() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := w.writer.Close(ctx)
	w.writer = nil
	return err
}

func (w *worker) attempt(batch nel.Batch) error {
	p := w.pool
	if w.writer == nil {
		writer, err := p.cfg.Dial(p.ctx)
		if err != nil {
			p.metric.Failed("connect")
			return err
		}
		w.logger.Debug("connected to store")
		w.writer = writer
	}

	ctx := p.ctx
	if p.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.WriteTimeout)
		defer cancel()
	}
	if err := w.writer.Write(ctx, batch); err != nil {
		p.metric.Failed("write")
		// reconnect on the next attempt
		if cErr := w.closeWriter(); cErr != nil {
			w.logger.WithError(cErr).Debug("error closing failed store connection")
		}
		return err
	}
	return nil
}

func (w *worker) process(batch nel.Batch) {
	p := w.pool
	defer p.addPending(-1)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.MaxElapsedTime = p.cfg.MaxRetryElapsed
	b.Reset()

	start := time.Now()
	err := backoff.RetryNotify(
		func() error { return w.attempt(batch) },
		backoff.WithContext(b, p.ctx),
		func(err error, next time.Duration) {
			w.logger.WithError(err).Warnf("store write failed, retrying in %s", next)
		})
	if err != nil {
		p.dropped.Add(1)
		p.metric.Dropped()
		w.logger.WithError(err).WithField("rows", len(batch)).Error("batch dropped")
		return
	}
	p.committed.Add(1)
	p.metric.Committed(len(batch), time.Since(start))
	w.logger.WithField("rows", len(batch)).Debug("data batch committed to db")
}
