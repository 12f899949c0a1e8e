// Package clickhouse stores NAT event batches with ClickHouse batch inserts.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/nfcollect/nfcollect/metrics"
	"github.com/nfcollect/nfcollect/producer/nel"
	"github.com/nfcollect/nfcollect/transport"
)

const (
	ConnMaxLifetime      = 10 * time.Minute
	BlockBufferSize      = 20
	MaxCompressionBuffer = 10240
	MaxExecutionTime     = 60
)

// Options returns the client options for the configuration.
func (c DbConfig) Options() *ch.Options {
	opts := &ch.Options{
		Protocol: ch.Native,
		Addr:     c.Srv,
		Auth: ch.Auth{
			Database: c.Database,
			Username: c.User,
			Password: c.Password.Expose(),
		},
		Settings: ch.Settings{
			"max_execution_time": MaxExecutionTime,
		},
		Compression: &ch.Compression{
			Method: ch.CompressionLZ4,
		},
		DialTimeout:          c.DialTimeout,
		ConnMaxLifetime:      ConnMaxLifetime,
		MaxOpenConns:         1,
		BlockBufferSize:      BlockBufferSize,
		MaxCompressionBuffer: MaxCompressionBuffer,
		ClientInfo: ch.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: metrics.NAMESPACE, Version: "0.1"},
			},
		},
	}
	if c.TLS {
		opts.TLS = &tls.Config{}
	}
	return opts
}

// InsertSQL returns the statement prepared for every batch.
func (c DbConfig) InsertSQL() string {
	return fmt.Sprintf("INSERT INTO %s.%s (%s)", c.Database, c.Table, strings.Join(nel.Columns, ","))
}

// Row converts an event to the column types of the table:
// DateTime, IPv6 addresses, UInt16 ports and a UInt8 protocol.
func Row(e nel.Event) []any {
	return []any{
		time.Unix(e.EventTime, 0).UTC(),
		net.IP(e.SrcAddr.AsSlice()).To16(),
		net.IP(e.DstAddr.AsSlice()).To16(),
		e.DstPort,
		net.IP(e.XlateSrcAddr.AsSlice()).To16(),
		e.XlateSrcPort,
		e.Protocol,
	}
}

// Writer owns a single ClickHouse connection.
type Writer struct {
	conn   driver.Conn
	insert string
}

func Open(ctx context.Context, cfg DbConfig) (*Writer, error) {
	conn, err := ch.Open(cfg.Options())
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database server, %w", err)
	}
	return &Writer{conn: conn, insert: cfg.InsertSQL()}, nil
}

func (w *Writer) Write(ctx context.Context, batch nel.Batch) error {
	b, err := w.conn.PrepareBatch(ctx, w.insert)
	if err != nil {
		return err
	}
	for _, e := range batch {
		if err := b.Append(Row(e)...); err != nil {
			_ = b.Abort()
			return fmt.Errorf("failed to append record to batch, %w", err)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("failed to send batch, %w", err)
	}
	return nil
}

func (w *Writer) Close(ctx context.Context) error {
	return w.conn.Close()
}

type Driver struct{}

func (d *Driver) Dialer(u *url.URL) (transport.Dialer, error) {
	cfg, err := ConfigFromURL(u)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (transport.Writer, error) {
		return Open(ctx, cfg)
	}, nil
}

func init() {
	transport.RegisterStoreDriver("clickhouse", &Driver{})
}
