package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSender struct {
	keys     []string
	payloads [][]byte
	err      error
	closed   bool
}

func (s *capturingSender) Send(ctx context.Context, key, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, string(key))
	s.payloads = append(s.payloads, data)
	return nil
}

func (s *capturingSender) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func TestMirrorSink(t *testing.T) {
	sender := &capturingSender{}
	sink := NewMirrorSink("mirror", sender, testLogger())
	assert.Equal(t, "mirror", sink.Name())

	payload := []byte{0x00, 0x09, 0xff}
	require.NoError(t, sink.OnDatagram(testMessage(payload)))
	assert.Equal(t, []string{"192.0.2.10:2055"}, sender.keys)
	assert.Equal(t, [][]byte{payload}, sender.payloads)

	sender.err = errors.New("unreachable")
	assert.Error(t, sink.OnDatagram(testMessage(payload)))

	sink.ReportStats(time.Minute)
	assert.Zero(t, sink.forwarded.Load())

	require.NoError(t, sink.Close(context.Background()))
	assert.True(t, sender.closed)
}
