// Package builder turns sink URLs into dispatcher sinks. Store URLs get a
// worker pool and a batching sink, sender URLs get a mirror sink.
package builder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/format"
	"github.com/nfcollect/nfcollect/transport"
	"github.com/nfcollect/nfcollect/transport/bulk"
	"github.com/nfcollect/nfcollect/utils"
)

// StoreOptions are the pool and batching options read from a store URL.
type StoreOptions struct {
	Name            string
	Workers         int
	QueueSize       int
	Policy          bulk.Policy
	BatchSize       int
	WriteTimeout    time.Duration
	FlushInterval   time.Duration
	MaxRetryElapsed time.Duration
}

func parseInt(q url.Values, key string, dst *int) error {
	if !q.Has(key) {
		return nil
	}
	v, err := strconv.ParseUint(q.Get(key), 10, 31)
	if err != nil {
		return fmt.Errorf("error parsing %s in URL: %w", key, err)
	}
	*dst = int(v)
	return nil
}

func parseDuration(q url.Values, key string, dst *time.Duration) error {
	if !q.Has(key) {
		return nil
	}
	v, err := time.ParseDuration(q.Get(key))
	if err != nil {
		return fmt.Errorf("error parsing %s in URL: %w", key, err)
	}
	if v < 0 {
		return fmt.Errorf("%s must not be negative", key)
	}
	*dst = v
	return nil
}

// ParseStoreOptions extracts the pool options from u and returns a copy of
// u without them, ready for the store driver.
func ParseStoreOptions(u *url.URL) (StoreOptions, *url.URL, error) {
	opts := StoreOptions{
		Name:         u.Scheme,
		Workers:      bulk.DefaultWorkers,
		BatchSize:    utils.DefaultBatchSize,
		WriteTimeout: bulk.DefaultWriteTimeout,
	}
	q := u.Query()
	if name := q.Get("name"); name != "" {
		opts.Name = name
	}
	var err error
	if opts.Policy, err = bulk.ParsePolicy(q.Get("policy")); err != nil {
		return opts, nil, err
	}
	for _, err := range []error{
		parseInt(q, "workers", &opts.Workers),
		parseInt(q, "queue_size", &opts.QueueSize),
		parseInt(q, "batch_size", &opts.BatchSize),
		parseDuration(q, "write_timeout", &opts.WriteTimeout),
		parseDuration(q, "flush_interval", &opts.FlushInterval),
		parseDuration(q, "max_retry", &opts.MaxRetryElapsed),
	} {
		if err != nil {
			return opts, nil, err
		}
	}
	if opts.Workers == 0 {
		return opts, nil, errors.New("workers must be positive")
	}
	if opts.BatchSize == 0 {
		return opts, nil, errors.New("batch_size must be positive")
	}
	for _, key := range []string{"name", "policy", "workers", "queue_size", "batch_size", "write_timeout", "flush_interval", "max_retry"} {
		q.Del(key)
	}
	stripped := *u
	stripped.RawQuery = q.Encode()
	return opts, &stripped, nil
}

// Built holds what BuildSinks created. Pools are owned by the batching
// sinks in the same order.
type Built struct {
	Sinks    []utils.Sink
	Batching []*utils.BatchingSink
	Pools    []*bulk.Pool
}

// Close releases everything built so far. It is used when a later sink
// fails to build.
func (b *Built) Close(ctx context.Context) error {
	var errs []error
	for _, s := range b.Sinks {
		if c, ok := s.(interface{ Close(context.Context) error }); ok {
			errs = append(errs, c.Close(ctx))
		}
	}
	for _, p := range b.Pools {
		errs = append(errs, p.Close(ctx))
	}
	return errors.Join(errs...)
}

func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return fmt.Sprintf("%s#%d", name, n)
	}
	return name
}

// BuildSinks opens every sink URL. All batching sinks share decoder so
// templates are learned once per exporter.
func BuildSinks(ctx context.Context, rawUrls []string, decoder *netflow.Decoder, logger logrus.FieldLogger) (*Built, error) {
	built := &Built{}
	seen := make(map[string]int)
	for _, rawUrl := range rawUrls {
		if err := built.add(ctx, rawUrl, decoder, logger, seen); err != nil {
			_ = built.Close(ctx)
			return nil, fmt.Errorf("build sink %s: %w", redact(rawUrl), err)
		}
	}
	return built, nil
}

func redact(rawUrl string) string {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}

func (b *Built) add(ctx context.Context, rawUrl string, decoder *netflow.Decoder, logger logrus.FieldLogger, seen map[string]int) error {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return err
	}
	switch {
	case transport.IsStore(u.Scheme):
		opts, stripped, err := ParseStoreOptions(u)
		if err != nil {
			return err
		}
		dial, err := transport.FindStore(stripped)
		if err != nil {
			return err
		}
		name := uniqueName(seen, opts.Name)
		pool, err := bulk.NewPool(bulk.PoolConfig{
			Name:            name,
			Dial:            dial,
			Workers:         opts.Workers,
			QueueSize:       opts.QueueSize,
			Policy:          opts.Policy,
			WriteTimeout:    opts.WriteTimeout,
			MaxRetryElapsed: opts.MaxRetryElapsed,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		sink, err := utils.NewBatchingSink(utils.BatchingSinkConfig{
			Name:          name,
			Decoder:       decoder,
			Pool:          pool,
			BatchSize:     opts.BatchSize,
			FlushInterval: opts.FlushInterval,
			Logger:        logger,
		})
		if err != nil {
			_ = pool.Close(ctx)
			return err
		}
		logger.WithFields(logrus.Fields{
			"sink":       name,
			"workers":    opts.Workers,
			"batch_size": opts.BatchSize,
			"policy":     opts.Policy,
		}).Info("store sink ready")
		b.Sinks = append(b.Sinks, sink)
		b.Batching = append(b.Batching, sink)
		b.Pools = append(b.Pools, pool)
	case transport.IsSender(u.Scheme):
		name := u.Query().Get("name")
		if name == "" {
			name = u.Scheme
		}
		sender, err := transport.OpenSender(ctx, u)
		if err != nil {
			return err
		}
		name = uniqueName(seen, name)
		logger.WithField("sink", name).Info("mirror sink ready")
		b.Sinks = append(b.Sinks, utils.NewMirrorSink(name, sender, logger))
	default:
		return fmt.Errorf("%w %s not found", transport.ErrTransport, u.Scheme)
	}
	return nil
}

// BuildFormatter resolves a formatter by name.
func BuildFormatter(name string) (*format.Format, error) {
	formatter, err := format.FindFormat(name)
	if err != nil {
		return nil, fmt.Errorf("build formatter %s: %w", name, err)
	}
	return formatter, nil
}
