// Package file implements a store writing NAT events as tab separated lines
// to a file or stdout.
package file

import (
	"context"
	"io"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nfcollect/nfcollect/producer/nel"
	"github.com/nfcollect/nfcollect/transport"
)

// Target is the destination shared by every writer dialed from the same URL.
// The file is reopened on SIGHUP so it can be rotated.
type Target struct {
	destination string
	lock        *sync.Mutex
	w           io.Writer
	file        *os.File
	refs        int
	sig         chan os.Signal
	q           chan bool
}

// NewTarget writes to stdout when destination is empty or "-".
func NewTarget(destination string) *Target {
	if destination == "-" {
		destination = ""
	}
	return &Target{
		destination: destination,
		lock:        &sync.Mutex{},
	}
}

// NewWriterTarget writes to w. Used for tests and embedding.
func NewWriterTarget(w io.Writer) *Target {
	return &Target{
		lock: &sync.Mutex{},
		w:    w,
		refs: 1,
	}
}

func (t *Target) openFile() error {
	file, err := os.OpenFile(t.destination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	t.file = file
	t.w = file
	return nil
}

func (t *Target) reload(c chan os.Signal, q chan bool) {
	for {
		select {
		case <-c:
			t.lock.Lock()
			if t.file == nil {
				t.lock.Unlock()
				continue
			}
			old := t.file
			// keeps using the old file if reopening fails
			if err := t.openFile(); err == nil {
				old.Close()
			}
			t.lock.Unlock()
		case <-q:
			return
		}
	}
}

func (t *Target) acquire() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.refs++
	if t.refs > 1 || t.w != nil {
		return nil
	}
	if t.destination == "" {
		t.w = os.Stdout
		return nil
	}
	if err := t.openFile(); err != nil {
		t.refs--
		return err
	}
	t.sig = make(chan os.Signal, 1)
	signal.Notify(t.sig, syscall.SIGHUP)
	t.q = make(chan bool)
	go t.reload(t.sig, t.q)
	return nil
}

func (t *Target) release() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.refs--
	if t.refs > 0 || t.file == nil {
		return nil
	}
	signal.Stop(t.sig)
	close(t.q)
	err := t.file.Close()
	t.file = nil
	t.w = nil
	return err
}

// Write appends the batch under the target lock so rows of concurrent
// writers are never interleaved.
func (t *Target) Write(ctx context.Context, batch nel.Batch) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return batch.WriteTSV(t.w)
}

type handle struct {
	target *Target
	once   sync.Once
}

func (h *handle) Write(ctx context.Context, batch nel.Batch) error {
	return h.target.Write(ctx, batch)
}

func (h *handle) Close(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		err = h.target.release()
	})
	return err
}

// Dial returns a writer on the target. Each writer must be closed.
func (t *Target) Dial(ctx context.Context) (transport.Writer, error) {
	if err := t.acquire(); err != nil {
		return nil, err
	}
	return &handle{target: t}, nil
}

type Driver struct{}

// Dialer accepts file:///path/to/file.tsv and file://- for stdout.
func (d *Driver) Dialer(u *url.URL) (transport.Dialer, error) {
	dest := u.Path
	if u.Host == "-" || u.Opaque == "-" {
		dest = "-"
	}
	return NewTarget(dest).Dial, nil
}

func init() {
	transport.RegisterStoreDriver("file", &Driver{})
}
