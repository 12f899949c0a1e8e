// Package transport provides a registry of output drivers. Senders forward
// raw datagrams, stores persist batches of NAT events.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/nfcollect/nfcollect/producer/nel"
)

var (
	senderDrivers = make(map[string]SenderDriver)
	storeDrivers  = make(map[string]StoreDriver)
	lock          = &sync.RWMutex{}

	// ErrTransport is the base error for transport failures.
	ErrTransport = fmt.Errorf("transport error")
)

// DriverTransportError wraps a driver-specific error with its transport name.
type DriverTransportError struct {
	Driver string
	Err    error
}

func (e *DriverTransportError) Error() string {
	return fmt.Sprintf("%s for %s transport", e.Err.Error(), e.Driver)
}

func (e *DriverTransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Sender forwards opaque payloads.
type Sender interface {
	Send(ctx context.Context, key, data []byte) error
	Close(ctx context.Context) error
}

// SenderDriver opens a Sender from a URL such as udp://host:port.
type SenderDriver interface {
	Open(ctx context.Context, u *url.URL) (Sender, error)
}

// Writer is a single connection to a store. It is owned by one worker and
// never shared.
type Writer interface {
	// Write stores the batch in a single bulk operation.
	Write(ctx context.Context, batch nel.Batch) error
	Close(ctx context.Context) error
}

// Dialer opens a new Writer.
type Dialer func(ctx context.Context) (Writer, error)

// StoreDriver validates a store URL and returns a Dialer for it.
type StoreDriver interface {
	Dialer(u *url.URL) (Dialer, error)
}

// Transport is a named Sender wrapper used by the registry.
type Transport struct {
	Sender
	name string
}

func (t *Transport) Name() string {
	return t.name
}

// Close calls the driver Close and wraps errors with transport metadata.
func (t *Transport) Close(ctx context.Context) error {
	if err := t.Sender.Close(ctx); err != nil {
		return &DriverTransportError{t.name, err}
	}
	return nil
}

// Send forwards data to the driver and wraps errors with transport metadata.
func (t *Transport) Send(ctx context.Context, key, data []byte) error {
	if err := t.Sender.Send(ctx, key, data); err != nil {
		return &DriverTransportError{t.name, err}
	}
	return nil
}

// RegisterSenderDriver registers a sender under a URL scheme.
func RegisterSenderDriver(scheme string, d SenderDriver) {
	lock.Lock()
	defer lock.Unlock()
	senderDrivers[scheme] = d
}

// RegisterStoreDriver registers a store under a URL scheme.
func RegisterStoreDriver(scheme string, d StoreDriver) {
	lock.Lock()
	defer lock.Unlock()
	storeDrivers[scheme] = d
}

// IsSender reports whether scheme names a registered sender.
func IsSender(scheme string) bool {
	lock.RLock()
	defer lock.RUnlock()
	_, ok := senderDrivers[scheme]
	return ok
}

// IsStore reports whether scheme names a registered store.
func IsStore(scheme string) bool {
	lock.RLock()
	defer lock.RUnlock()
	_, ok := storeDrivers[scheme]
	return ok
}

// OpenSender opens the sender registered for the URL scheme.
func OpenSender(ctx context.Context, u *url.URL) (*Transport, error) {
	lock.RLock()
	d, ok := senderDrivers[u.Scheme]
	lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %s not found", ErrTransport, u.Scheme)
	}
	s, err := d.Open(ctx, u)
	if err != nil {
		return nil, &DriverTransportError{u.Scheme, err}
	}
	return &Transport{s, u.Scheme}, nil
}

// FindStore returns a Dialer for the store registered for the URL scheme.
func FindStore(u *url.URL) (Dialer, error) {
	lock.RLock()
	d, ok := storeDrivers[u.Scheme]
	lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %s not found", ErrTransport, u.Scheme)
	}
	dial, err := d.Dialer(u)
	if err != nil {
		return nil, &DriverTransportError{u.Scheme, err}
	}
	return func(ctx context.Context) (Writer, error) {
		w, err := dial(ctx)
		if err != nil {
			return nil, &DriverTransportError{u.Scheme, err}
		}
		return w, nil
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSenders returns the registered sender schemes.
func GetSenders() []string {
	lock.RLock()
	defer lock.RUnlock()
	return sortedKeys(senderDrivers)
}

// GetStores returns the registered store schemes.
func GetStores() []string {
	lock.RLock()
	defer lock.RUnlock()
	return sortedKeys(storeDrivers)
}
