package utils

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nfcollect/nfcollect/metrics"
	"github.com/nfcollect/nfcollect/transport"
)

// MirrorSink forwards datagrams unmodified, keyed by exporter.
type MirrorSink struct {
	name      string
	sender    transport.Sender
	logger    logrus.FieldLogger
	forwarded atomic.Uint64
}

func NewMirrorSink(name string, sender transport.Sender, logger logrus.FieldLogger) *MirrorSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MirrorSink{
		name:   name,
		sender: sender,
		logger: logger.WithField("sink", name),
	}
}

func (s *MirrorSink) Name() string {
	return s.name
}

func (s *MirrorSink) OnDatagram(msg *Message) error {
	if err := s.sender.Send(context.Background(), []byte(msg.Exporter()), msg.Payload); err != nil {
		return err
	}
	s.forwarded.Add(1)
	metrics.MirrorForwarded.With(prometheus.Labels{"sink": s.name}).Inc()
	return nil
}

func (s *MirrorSink) ReportStats(interval time.Duration) {
	s.logger.Infof("forwarded %d datagrams for %d seconds", s.forwarded.Swap(0), int(interval.Seconds()))
}

func (s *MirrorSink) Close(ctx context.Context) error {
	return s.sender.Close(ctx)
}
