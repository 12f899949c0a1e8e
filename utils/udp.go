package utils

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	reuseport "github.com/libp2p/go-reuseport"
	"github.com/sirupsen/logrus"

	"github.com/nfcollect/nfcollect/metrics"
)

// ErrAlreadyStarted is returned when starting a running receiver.
var ErrAlreadyStarted = errors.New("receiver is already started")

const (
	DefaultQueueSize = 100000
	maxDatagramSize  = 9000
)

type udpPacket struct {
	src      netip.AddrPort
	dst      netip.AddrPort
	size     int
	payload  []byte
	received time.Time
}

var packetPool = sync.Pool{
	New: func() any {
		return &udpPacket{
			payload: make([]byte, maxDatagramSize),
		}
	},
}

// ReceiverCallback handles a datagram. The payload is only valid during the
// call.
type ReceiverCallback func(msg *Message) error

type UDPReceiverConfig struct {
	// Sockets bound to the same address with SO_REUSEPORT.
	Sockets int
	// QueueSize is the capacity of the channel between the sockets and the
	// dispatch goroutine.
	QueueSize int
	// Blocking makes sockets wait for room in the queue instead of dropping.
	Blocking bool

	Logger logrus.FieldLogger
}

// UDPReceiver reads datagrams on one or more sockets and feeds them, in
// arrival order, to a single dispatch goroutine.
type UDPReceiver struct {
	ready    chan bool
	q        chan bool
	wg       *sync.WaitGroup
	dispatch chan *udpPacket
	errCh    chan error
	done     chan bool

	sockets  int
	blocking bool
	conns    []*net.UDPConn
	lock     *sync.Mutex

	metric *metrics.ReceiverMetric
	logger logrus.FieldLogger
}

func NewUDPReceiver(cfg *UDPReceiverConfig) (*UDPReceiver, error) {
	r := &UDPReceiver{
		wg:      &sync.WaitGroup{},
		sockets: 1,
		ready:   make(chan bool, 1),
		errCh:   make(chan error, 16),
		lock:    &sync.Mutex{},
		metric:  metrics.NewReceiverMetric(),
		logger:  logrus.StandardLogger(),
	}
	queueSize := DefaultQueueSize
	if cfg != nil {
		if cfg.Sockets > 0 {
			r.sockets = cfg.Sockets
		}
		if cfg.QueueSize > 0 {
			queueSize = cfg.QueueSize
		} else if cfg.QueueSize < 0 {
			return nil, fmt.Errorf("invalid queue size %d", cfg.QueueSize)
		}
		r.blocking = cfg.Blocking
		if cfg.Logger != nil {
			r.logger = cfg.Logger
		}
	}
	r.dispatch = make(chan *udpPacket, queueSize)
	r.ready <- true
	return r, nil
}

// Errors returns socket errors. Errors are discarded when nobody reads them.
func (r *UDPReceiver) Errors() <-chan error {
	return r.errCh
}

func (r *UDPReceiver) sendError(err error) {
	select {
	case r.errCh <- err:
	default:
	}
}

// LocalAddr returns the address of the first socket.
func (r *UDPReceiver) LocalAddr() net.Addr {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.conns) == 0 {
		return nil
	}
	return r.conns[0].LocalAddr()
}

func (r *UDPReceiver) listen(addr string, port int) (*net.UDPConn, error) {
	pconn, err := reuseport.ListenPacket("udp", net.JoinHostPort(addr, fmt.Sprint(port)))
	if err != nil {
		return nil, err
	}
	udpconn, ok := pconn.(*net.UDPConn)
	if !ok {
		pconn.Close()
		return nil, fmt.Errorf("not a UDP connection: %T", pconn)
	}
	return udpconn, nil
}

func (r *UDPReceiver) receive(udpconn *net.UDPConn) {
	dst, _ := netip.ParseAddrPort(udpconn.LocalAddr().String())
	for {
		pkt := packetPool.Get().(*udpPacket)
		var err error
		pkt.size, pkt.src, err = udpconn.ReadFromUDPAddrPort(pkt.payload)
		if err != nil {
			packetPool.Put(pkt)
			if !errors.Is(err, net.ErrClosed) {
				r.sendError(err)
			}
			return
		}
		if pkt.size == 0 {
			packetPool.Put(pkt)
			continue
		}
		pkt.dst = dst
		pkt.received = time.Now().UTC()

		if r.blocking {
			select {
			case r.dispatch <- pkt:
			case <-r.q:
				packetPool.Put(pkt)
				return
			}
		} else {
			select {
			case r.dispatch <- pkt:
			case <-r.q:
				packetPool.Put(pkt)
				return
			default:
				r.metric.Dropped(pkt.src, dst, pkt.size)
				packetPool.Put(pkt)
				continue
			}
		}
		r.metric.Received(pkt.src, dst, pkt.size)
	}
}

func (r *UDPReceiver) dispatchRoutine(cb ReceiverCallback) {
	defer close(r.done)
	for pkt := range r.dispatch {
		msg := &Message{
			Src:      pkt.src,
			Dst:      pkt.dst,
			Payload:  pkt.payload[:pkt.size],
			Received: pkt.received,
		}
		// errors are reported by the callback itself
		_ = cb(msg)
		packetPool.Put(pkt)
	}
}

// Start binds the sockets and runs cb for every datagram from a single
// goroutine.
func (r *UDPReceiver) Start(addr string, port int, cb ReceiverCallback) error {
	select {
	case <-r.ready:
	default:
		return ErrAlreadyStarted
	}

	conns := make([]*net.UDPConn, 0, r.sockets)
	for i := 0; i < r.sockets; i++ {
		conn, err := r.listen(addr, port)
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			r.ready <- true
			return err
		}
		conns = append(conns, conn)
		if port == 0 {
			// an ephemeral port cannot be shared, keep the first one
			port = conn.LocalAddr().(*net.UDPAddr).Port
		}
	}

	r.lock.Lock()
	r.conns = conns
	r.lock.Unlock()
	r.q = make(chan bool)
	r.done = make(chan bool)

	go r.dispatchRoutine(cb)
	for _, conn := range conns {
		r.wg.Add(1)
		go func(conn *net.UDPConn) {
			defer r.wg.Done()
			r.receive(conn)
		}(conn)
	}
	r.logger.WithFields(logrus.Fields{
		"addr":     net.JoinHostPort(addr, fmt.Sprint(port)),
		"sockets":  r.sockets,
		"blocking": r.blocking,
	}).Info("starting collection")
	return nil
}

// Stop closes the sockets and waits until the queued datagrams have been
// dispatched.
func (r *UDPReceiver) Stop() error {
	r.lock.Lock()
	conns := r.conns
	r.conns = nil
	r.lock.Unlock()
	if conns == nil {
		return nil
	}

	close(r.q)
	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.wg.Wait()
	close(r.dispatch)
	<-r.done
	return errors.Join(errs...)
}
