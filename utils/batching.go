package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/metrics"
	"github.com/nfcollect/nfcollect/producer/nel"
)

const DefaultBatchSize = 1000

// BatchSubmitter takes ownership of full batches, see bulk.Pool.
type BatchSubmitter interface {
	Submit(ctx context.Context, batch nel.Batch) error
	QueueDepth() int
}

type BatchingSinkConfig struct {
	Name      string
	Decoder   *netflow.Decoder
	Pool      BatchSubmitter
	BatchSize int
	// FlushInterval submits a partial batch once its first event is older.
	// Zero only flushes full batches.
	FlushInterval time.Duration
	Logger        logrus.FieldLogger
}

// BatchingSink decodes NetFlow v9 datagrams, keeps created NAT translations
// and submits them to the pool in batches of BatchSize events.
type BatchingSink struct {
	name          string
	decoder       *netflow.Decoder
	pool          BatchSubmitter
	batchSize     int
	flushInterval time.Duration
	logger        logrus.FieldLogger
	now           func() time.Time

	lock       *sync.Mutex
	batch      nel.Batch
	batchStart time.Time
	records    int
	datagrams  int
}

func NewBatchingSink(cfg BatchingSinkConfig) (*BatchingSink, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("batching sink %s: pool is required", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = "nel"
	}
	if cfg.Decoder == nil {
		cfg.Decoder = netflow.NewDecoder(9, nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &BatchingSink{
		name:          cfg.Name,
		decoder:       cfg.Decoder,
		pool:          cfg.Pool,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        cfg.Logger.WithField("sink", cfg.Name),
		now:           time.Now,
		lock:          &sync.Mutex{},
		batch:         make(nel.Batch, 0, cfg.BatchSize),
	}, nil
}

func (s *BatchingSink) Name() string {
	return s.name
}

func (s *BatchingSink) Decoder() *netflow.Decoder {
	return s.decoder
}

// take detaches the current batch and starts an empty one.
func (s *BatchingSink) take() nel.Batch {
	full := s.batch
	s.batch = make(nel.Batch, 0, s.batchSize)
	return full
}

func (s *BatchingSink) submit(ctx context.Context, batch nel.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.pool.Submit(ctx, batch); err != nil {
		return fmt.Errorf("submitting %d events: %w", len(batch), err)
	}
	return nil
}

func (s *BatchingSink) append(ev nel.Event) error {
	s.lock.Lock()
	if len(s.batch) == 0 {
		s.batchStart = s.now()
	}
	s.batch = append(s.batch, ev)
	if len(s.batch) < s.batchSize {
		s.lock.Unlock()
		return nil
	}
	full := s.take()
	s.lock.Unlock()
	return s.submit(context.Background(), full)
}

// OnDatagram decodes msg and batches the retained events. A rejected batch
// is dropped but the walk goes on, so later templates are still learned and
// later events still batched. Events decoded before a decoding error are
// kept. Submit and decoding errors are returned together.
func (s *BatchingSink) OnDatagram(msg *Message) error {
	var submitErr error
	records := s.decoder.Parse(msg.Payload, msg.Exporter())
	for records.Next() {
		ev, outcome := nel.Produce(records.Record())
		metrics.RecordOutcome(s.name, outcome)
		if outcome != nel.Retained {
			continue
		}
		if err := s.append(ev); err != nil && submitErr == nil {
			submitErr = err
		}
	}
	metrics.RecordParse(string(records.Exporter()), records)

	s.lock.Lock()
	s.datagrams++
	s.records += records.Stats().Records
	s.lock.Unlock()

	if err := records.TemplateErr(); err != nil {
		s.logger.WithError(err).Warn("failed to persist template")
	}
	if err := s.Tick(s.now()); err != nil && submitErr == nil {
		submitErr = err
	}
	return errors.Join(submitErr, records.Err())
}

// Tick submits the partial batch when it is older than the flush interval.
func (s *BatchingSink) Tick(now time.Time) error {
	if s.flushInterval <= 0 {
		return nil
	}
	s.lock.Lock()
	if len(s.batch) == 0 || now.Sub(s.batchStart) < s.flushInterval {
		s.lock.Unlock()
		return nil
	}
	partial := s.take()
	s.lock.Unlock()
	return s.submit(context.Background(), partial)
}

// RunFlusher calls Tick until ctx is done. It returns at once when no flush
// interval is set.
func (s *BatchingSink) RunFlusher(ctx context.Context) error {
	if s.flushInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.flushInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.Tick(now); err != nil {
				s.logger.WithError(err).Error("time based flush failed")
			}
		}
	}
}

// Flush submits the partial batch.
func (s *BatchingSink) Flush(ctx context.Context) error {
	s.lock.Lock()
	partial := s.take()
	s.lock.Unlock()
	return s.submit(ctx, partial)
}

// Buffered returns the number of events waiting for the batch to fill.
func (s *BatchingSink) Buffered() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.batch)
}

func (s *BatchingSink) ReportStats(interval time.Duration) {
	s.lock.Lock()
	records, datagrams, buffered := s.records, s.datagrams, len(s.batch)
	s.records, s.datagrams = 0, 0
	s.lock.Unlock()

	metrics.BatchBufferSize.With(prometheus.Labels{"sink": s.name}).Set(float64(buffered))
	// each decoded record counts as one flow set in this line
	s.logger.Infof("handled %d flow sets in %d datagrams for %d seconds", records, datagrams, int(interval.Seconds()))
	s.logger.Infof("queue size %d current buffer %d", s.pool.QueueDepth(), buffered)
}
