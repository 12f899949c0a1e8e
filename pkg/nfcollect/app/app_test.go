package app

import (
	"context"
	"net"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/config"
	"github.com/nfcollect/nfcollect/producer/nel"
	"github.com/nfcollect/nfcollect/state"
	"github.com/nfcollect/nfcollect/transport"
)

type memoryStore struct {
	lock    sync.Mutex
	batches []nel.Batch
}

func (s *memoryStore) Dialer(u *url.URL) (transport.Dialer, error) {
	return func(ctx context.Context) (transport.Writer, error) {
		return s, nil
	}, nil
}

func (s *memoryStore) Write(ctx context.Context, batch nel.Batch) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *memoryStore) Close(ctx context.Context) error {
	return nil
}

func (s *memoryStore) events() []nel.Event {
	s.lock.Lock()
	defer s.lock.Unlock()
	var out []nel.Event
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

var store = &memoryStore{}

func init() {
	transport.RegisterStoreDriver("app-memory", store)
}

func natDatagram(t *testing.T, ports ...uint16) []byte {
	t.Helper()
	schema, err := netflow.CompileNamed(netflow.DefaultCatalog,
		"EVENT_TIME_MSEC", "IPV4_SRC_ADDR", "IPV4_DST_ADDR", "L4_DST_PORT",
		"XLATE_SRC_ADDR_IPV4", "XLATE_SRC_PORT", "PROTOCOL", "NAT_EVENT")
	require.NoError(t, err)
	var records [][]byte
	for _, port := range ports {
		records = append(records, netflow.EncodeRecord(schema,
			netflow.UintValue(1690000000123),
			netflow.UintValue(0x0a000001),
			netflow.UintValue(0x08080808),
			netflow.UintValue(uint64(port)),
			netflow.UintValue(0xc6336401),
			netflow.UintValue(40000),
			netflow.UintValue(17),
			netflow.UintValue(uint64(nel.NATEventCreate)),
		))
	}
	return netflow.EncodePacket(
		netflow.PacketHeader{Version: 9, Count: uint16(1 + len(records))},
		netflow.EncodeTemplateFlowSet(netflow.TemplateRecord{TemplateId: 300, Fields: schema.Descriptors()}),
		netflow.EncodeDataFlowSet(300, records...),
	)
}

func TestAppRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	statePath := filepath.Join(t.TempDir(), "templates")
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Addr = ""
	cfg.Sinks = []string{"app-memory://local?batch_size=100"}
	cfg.Templates.State = "badger://" + statePath

	a, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-a.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not start")
	}

	conn, err := net.Dial("udp", a.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(natDatagram(t, 53, 123))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return a.Templates().Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	// the batch is below batch_size, so it is only written on shutdown
	assert.Empty(t, store.events())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}

	events := store.events()
	require.Len(t, events, 2)
	assert.Equal(t, uint16(53), events[0].DstPort)
	assert.Equal(t, uint16(123), events[1].DstPort)
	assert.Equal(t, uint8(17), events[0].Protocol)
	assert.Equal(t, int64(1690000000), events[0].EventTime)

	// templates survive a restart
	templates, err := state.OpenTemplateStore("badger://" + statePath)
	require.NoError(t, err)
	defer templates.Close()
	cache := netflow.NewTemplateCache()
	assert.Equal(t, 1, templates.Restore(cache))
}

func TestAppNewErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()

	cfg := config.Default()
	_, err := New(context.Background(), cfg, logger)
	assert.Error(t, err, "no sinks")

	cfg.Sinks = []string{"app-memory://local"}
	cfg.Listen = "sflow://:6343"
	_, err = New(context.Background(), cfg, logger)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Sinks = []string{"app-memory://local?workers=zero"}
	_, err = New(context.Background(), cfg, logger)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Sinks = []string{"app-memory://local"}
	cfg.Templates.State = "etcd://nowhere"
	_, err = New(context.Background(), cfg, logger)
	assert.Error(t, err)
}
