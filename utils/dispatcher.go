package utils

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/metrics"
	"github.com/nfcollect/nfcollect/utils/debug"
)

const DefaultStatsInterval = 60 * time.Second

// DispatcherConfig sets the error log rate limit, ErrCnt errors per ErrInt.
type DispatcherConfig struct {
	Logger logrus.FieldLogger
	ErrCnt int
	ErrInt time.Duration
}

type dispatchedSink struct {
	sink    Sink
	wrapped *debug.PanicSinkWrapper[*Message]
}

// Dispatcher hands every datagram to each registered sink in registration
// order. It is not safe for concurrent use: a single goroutine must call
// OnDatagram.
type Dispatcher struct {
	sinks  []dispatchedSink
	logger logrus.FieldLogger
	mute   *BatchMute
}

func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	d := &Dispatcher{
		logger: cfg.Logger,
		mute:   NewBatchMute(cfg.ErrInt, cfg.ErrCnt),
	}
	for _, s := range sinks {
		d.Register(s)
	}
	return d
}

func (d *Dispatcher) Register(s Sink) {
	d.sinks = append(d.sinks, dispatchedSink{
		sink:    s,
		wrapped: debug.WrapPanicSink[*Message](s),
	})
}

func (d *Dispatcher) Sinks() []Sink {
	sinks := make([]Sink, len(d.sinks))
	for i, s := range d.sinks {
		sinks[i] = s.sink
	}
	return sinks
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, debug.ErrPanic):
		return "panic"
	case errors.Is(err, netflow.ErrTruncated):
		return "truncated"
	case errors.Is(err, netflow.ErrMalformed):
		return "malformed"
	}
	return "sink"
}

func (d *Dispatcher) logError(sink string, msg *Message, err error) {
	muted, skipped := d.mute.Increment()
	if muted && skipped == 0 {
		d.logger.Warn("too many sink errors, muting")
		return
	} else if !muted && skipped > 0 {
		d.logger.Warnf("skipped %d sink errors", skipped)
		return
	} else if muted {
		return
	}

	logger := d.logger.WithFields(logrus.Fields{
		"sink":     sink,
		"exporter": msg.Src.String(),
	}).WithError(err)
	var pErrMsg *debug.PanicErrorMessage
	if errors.As(err, &pErrMsg) {
		logger.WithField("stacktrace", string(pErrMsg.Stacktrace)).Error("intercepted panic")
		return
	}
	logger.Warn("error processing datagram")
}

// OnDatagram runs every sink on msg. A failing sink does not stop the
// others; the errors are logged, counted and returned joined.
func (d *Dispatcher) OnDatagram(msg *Message) error {
	var errs []error
	for _, s := range d.sinks {
		name := s.sink.Name()
		metrics.SinkDatagrams.With(prometheus.Labels{"sink": name}).Inc()
		if err := s.wrapped.OnDatagram(msg); err != nil {
			metrics.SinkErrors.With(prometheus.Labels{"sink": name, "error": errorLabel(err)}).Inc()
			d.logError(name, msg, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReportStats calls ReportStats on every sink implementing StatsReporter.
func (d *Dispatcher) ReportStats(interval time.Duration) {
	for _, s := range d.sinks {
		if r, ok := s.sink.(StatsReporter); ok {
			r.ReportStats(interval)
		}
	}
}

// RunStats reports every period until ctx is done.
func (d *Dispatcher) RunStats(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = DefaultStatsInterval
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			d.ReportStats(now.Sub(last))
			last = now
		}
	}
}

// Close flushes, then closes, every sink in registration order.
func (d *Dispatcher) Close(ctx context.Context) error {
	var errs []error
	for _, s := range d.sinks {
		if f, ok := s.sink.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if c, ok := s.sink.(interface{ Close(context.Context) error }); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		} else if c, ok := s.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
