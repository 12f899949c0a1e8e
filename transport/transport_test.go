package transport

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcollect/nfcollect/producer/nel"
)

var errFake = errors.New("fake failure")

type fakeSender struct {
	fail bool
	sent [][]byte
}

func (s *fakeSender) Send(ctx context.Context, key, data []byte) error {
	if s.fail {
		return errFake
	}
	s.sent = append(s.sent, data)
	return nil
}

func (s *fakeSender) Close(ctx context.Context) error {
	if s.fail {
		return errFake
	}
	return nil
}

type fakeSenderDriver struct {
	sender *fakeSender
}

func (d *fakeSenderDriver) Open(ctx context.Context, u *url.URL) (Sender, error) {
	if u.Host == "" {
		return nil, errFake
	}
	return d.sender, nil
}

type fakeWriter struct{}

func (fakeWriter) Write(ctx context.Context, batch nel.Batch) error { return nil }
func (fakeWriter) Close(ctx context.Context) error                  { return nil }

type fakeStoreDriver struct {
	failDial bool
}

func (d *fakeStoreDriver) Dialer(u *url.URL) (Dialer, error) {
	if u.Path == "" {
		return nil, errFake
	}
	return func(ctx context.Context) (Writer, error) {
		if d.failDial {
			return nil, errFake
		}
		return fakeWriter{}, nil
	}, nil
}

func TestSenderRegistry(t *testing.T) {
	sender := &fakeSender{}
	RegisterSenderDriver("fake-sender", &fakeSenderDriver{sender})

	assert.True(t, IsSender("fake-sender"))
	assert.False(t, IsStore("fake-sender"))
	assert.Contains(t, GetSenders(), "fake-sender")

	tr, err := OpenSender(context.Background(), &url.URL{Scheme: "fake-sender", Host: "collector:2055"})
	require.NoError(t, err)
	assert.Equal(t, "fake-sender", tr.Name())
	require.NoError(t, tr.Send(context.Background(), []byte("key"), []byte("payload")))
	assert.Equal(t, [][]byte{[]byte("payload")}, sender.sent)

	sender.fail = true
	err = tr.Send(context.Background(), nil, []byte("payload"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errFake)
	var driverErr *DriverTransportError
	require.ErrorAs(t, err, &driverErr)
	assert.Equal(t, "fake-sender", driverErr.Driver)
	assert.ErrorIs(t, tr.Close(context.Background()), errFake)

	_, err = OpenSender(context.Background(), &url.URL{Scheme: "fake-sender"})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestUnknownScheme(t *testing.T) {
	_, err := OpenSender(context.Background(), &url.URL{Scheme: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrTransport)
	_, err = FindStore(&url.URL{Scheme: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestStoreRegistry(t *testing.T) {
	driver := &fakeStoreDriver{}
	RegisterStoreDriver("fake-store", driver)

	assert.True(t, IsStore("fake-store"))
	assert.Contains(t, GetStores(), "fake-store")

	dial, err := FindStore(&url.URL{Scheme: "fake-store", Path: "/db"})
	require.NoError(t, err)
	w, err := dial(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), nel.Batch{}))

	driver.failDial = true
	_, err = dial(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errFake)

	_, err = FindStore(&url.URL{Scheme: "fake-store"})
	assert.ErrorIs(t, err, errFake)
}
