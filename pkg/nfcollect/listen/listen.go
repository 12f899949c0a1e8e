package listen

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nfcollect/nfcollect/utils"
)

// ListenerConfig defines a parsed listen address.
type ListenerConfig struct {
	Hostname   string
	Port       int
	NumSockets int
	Blocking   bool
	QueueSize  int
}

// ParseListenAddress parses host:port or
// netflow://host:port?count=N&blocking=true&queue_size=N.
func ParseListenAddress(spec string) (ListenerConfig, error) {
	if !strings.Contains(spec, "://") {
		spec = "netflow://" + spec
	}
	listenAddrURL, err := url.Parse(spec)
	if err != nil {
		return ListenerConfig{}, fmt.Errorf("parse listen address %q: %w", spec, err)
	}
	if listenAddrURL.Scheme != "netflow" {
		return ListenerConfig{}, fmt.Errorf("unsupported listen scheme %q", listenAddrURL.Scheme)
	}
	q := listenAddrURL.Query()

	numSockets := 1
	if q.Has("count") {
		numSocketsTmp, err := strconv.ParseUint(q.Get("count"), 10, 64)
		if err != nil {
			return ListenerConfig{}, fmt.Errorf("error parsing count of sockets in URL: %w", err)
		}
		numSockets = int(numSocketsTmp)
	}
	if numSockets == 0 {
		numSockets = 1
	}

	var isBlocking bool
	if q.Has("blocking") {
		isBlocking, err = strconv.ParseBool(q.Get("blocking"))
		if err != nil {
			return ListenerConfig{}, fmt.Errorf("error parsing blocking in URL: %w", err)
		}
	}

	queueSize := utils.DefaultQueueSize
	if q.Has("queue_size") {
		queueSizeTmp, err := strconv.ParseUint(q.Get("queue_size"), 10, 64)
		if err != nil {
			return ListenerConfig{}, fmt.Errorf("error parsing queue_size in URL: %w", err)
		}
		if queueSizeTmp > 0 {
			queueSize = int(queueSizeTmp)
		}
	}

	port, err := strconv.ParseUint(listenAddrURL.Port(), 10, 16)
	if err != nil {
		return ListenerConfig{}, fmt.Errorf("port could not be converted to integer: %s: %w", listenAddrURL.Port(), err)
	}

	return ListenerConfig{
		Hostname:   listenAddrURL.Hostname(),
		Port:       int(port),
		NumSockets: numSockets,
		Blocking:   isBlocking,
		QueueSize:  queueSize,
	}, nil
}

// ReceiverConfig converts the listener options.
func (l ListenerConfig) ReceiverConfig() *utils.UDPReceiverConfig {
	return &utils.UDPReceiverConfig{
		Sockets:   l.NumSockets,
		QueueSize: l.QueueSize,
		Blocking:  l.Blocking,
	}
}
