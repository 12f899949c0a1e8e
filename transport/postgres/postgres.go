// Package postgres stores NAT event batches with the PostgreSQL COPY protocol.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nfcollect/nfcollect/producer/nel"
	"github.com/nfcollect/nfcollect/transport"
)

const (
	DefaultSchema = "nfcollect"
	DefaultTable  = "log_items"
	DefaultPort   = "5432"
)

type Config struct {
	// ConnString is handed to pgx untouched.
	ConnString string
	Table      pgx.Identifier
}

// ConfigFromURL turns a postgres:// or pg-nel-store:// URL into a connection
// string. The table parameter (schema.table) is consumed here.
func ConfigFromURL(u *url.URL) (Config, error) {
	cu := *u
	cu.Scheme = "postgres"
	if cu.Host == "" {
		return Config{}, fmt.Errorf("missing host in %s", u.Redacted())
	}
	if cu.Port() == "" && !strings.Contains(cu.Host, ",") {
		cu.Host = cu.Host + ":" + DefaultPort
	}

	q := cu.Query()
	table := q.Get("table")
	q.Del("table")
	cu.RawQuery = q.Encode()

	ident, err := parseTable(table)
	if err != nil {
		return Config{}, err
	}
	return Config{ConnString: cu.String(), Table: ident}, nil
}

func parseTable(s string) (pgx.Identifier, error) {
	if s == "" {
		return pgx.Identifier{DefaultSchema, DefaultTable}, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid table %q", s)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid table %q", s)
		}
	}
	return pgx.Identifier(parts), nil
}

// Writer owns a single PostgreSQL connection.
type Writer struct {
	conn  *pgx.Conn
	table pgx.Identifier
}

func Open(ctx context.Context, cfg Config) (*Writer, error) {
	conn, err := pgx.Connect(ctx, cfg.ConnString)
	if err != nil {
		return nil, err
	}
	return &Writer{conn: conn, table: cfg.Table}, nil
}

// Write copies the batch in a single COPY statement, which commits on its own.
func (w *Writer) Write(ctx context.Context, batch nel.Batch) error {
	n, err := w.conn.CopyFrom(ctx, w.table, nel.Columns, pgx.CopyFromRows(batch.Rows()))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", w.table.Sanitize(), err)
	}
	if n != int64(len(batch)) {
		return fmt.Errorf("copy into %s: %d rows written, expected %d", w.table.Sanitize(), n, len(batch))
	}
	return nil
}

func (w *Writer) Close(ctx context.Context) error {
	return w.conn.Close(ctx)
}

type Driver struct{}

func (d *Driver) Dialer(u *url.URL) (transport.Dialer, error) {
	cfg, err := ConfigFromURL(u)
	if err != nil {
		return nil, err
	}
	if _, err := pgx.ParseConfig(cfg.ConnString); err != nil {
		return nil, err
	}
	return func(ctx context.Context) (transport.Writer, error) {
		return Open(ctx, cfg)
	}, nil
}

func init() {
	d := &Driver{}
	transport.RegisterStoreDriver("postgres", d)
	transport.RegisterStoreDriver("postgresql", d)
	transport.RegisterStoreDriver("pg-nel-store", d)
}
