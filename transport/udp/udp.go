// Package udp forwards raw datagrams to another collector.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/nfcollect/nfcollect/transport"
)

// Sender writes each payload as a single datagram. With several sockets the
// payloads are spread round robin, giving the receiver one source port per
// socket to hash on.
type Sender struct {
	streamers   []*net.UDPConn
	currentSock int
	lock        *sync.Mutex
}

// Dial opens sockets connected to dst, bound to src when it is set.
func Dial(dst, src string, sockets int) (*Sender, error) {
	if sockets <= 0 {
		sockets = 1
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", dst)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve remote addr %s: %w", dst, err)
	}
	var localAddr *net.UDPAddr
	if src != "" {
		if localAddr, err = net.ResolveUDPAddr("udp", net.JoinHostPort(src, "0")); err != nil {
			return nil, fmt.Errorf("unable to resolve local addr %s: %w", src, err)
		}
	}

	s := &Sender{lock: &sync.Mutex{}}
	for i := 0; i < sockets; i++ {
		conn, err := net.DialUDP("udp", localAddr, remoteAddr)
		if err != nil {
			s.Close(context.Background())
			return nil, fmt.Errorf("unable to create UDP socket: %w", err)
		}
		s.streamers = append(s.streamers, conn)
	}
	return s, nil
}

func (s *Sender) Send(ctx context.Context, key, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := s.streamers[s.currentSock].Write(data)
	s.currentSock++
	if s.currentSock >= len(s.streamers) {
		s.currentSock = 0
	}
	return err
}

func (s *Sender) Close(ctx context.Context) error {
	var errs []error
	for _, conn := range s.streamers {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}

type Driver struct{}

// Open accepts udp://host:port?sockets=2&src=10.0.0.1.
func (d *Driver) Open(ctx context.Context, u *url.URL) (transport.Sender, error) {
	if u.Port() == "" {
		return nil, fmt.Errorf("missing port in %s", u)
	}
	sockets := 1
	q := u.Query()
	if v := q.Get("sockets"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid sockets value %q", v)
		}
		sockets = n
	}
	return Dial(u.Host, q.Get("src"), sockets)
}

func init() {
	d := &Driver{}
	transport.RegisterSenderDriver("udp", d)
	transport.RegisterSenderDriver("mirror", d)
}
