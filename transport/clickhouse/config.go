package clickhouse

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	envPrefix = "NFC_CLICKHOUSE_"

	defaultDatabase    = "nfcollect"
	defaultTable       = "log_items"
	defaultDialTimeout = 3 * time.Second
)

// DbConfig describes a ClickHouse target. Values come from the environment
// first and are overridden by the store URL.
type DbConfig struct {
	Srv         StringSliceFlag `env:"SRV"`
	Database    string          `env:"DATABASE"`
	Table       string          `env:"TABLE"`
	User        string          `env:"USER"`
	Password    Password        `env:"PASSWORD"`
	TLS         bool            `env:"TLS"`
	DialTimeout time.Duration   `env:"DIAL_TIMEOUT"`
}

func (c *DbConfig) SetDefaults() {
	c.Database = defaultDatabase
	c.Table = defaultTable
	c.User = "default"
	c.DialTimeout = defaultDialTimeout
}

func (c *DbConfig) Check() error {
	if len(c.Srv) == 0 {
		return errors.New("undefined srv")
	}
	if len(c.Database) == 0 {
		return errors.New("undefined database name")
	}
	if len(c.Table) == 0 {
		return errors.New("undefined table")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive, got %v", c.DialTimeout)
	}
	return nil
}

func (c *DbConfig) loadFromEnv() error {
	return env.ParseWithOptions(c, env.Options{Prefix: envPrefix})
}

// applyURL overrides the configuration with clickhouse://user:pass@h1,h2/db?table=t&secure=true.
func (c *DbConfig) applyURL(u *url.URL) error {
	if u.Host != "" {
		c.Srv = nil
		if err := c.Srv.Set(u.Host); err != nil {
			return err
		}
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		c.Database = db
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			c.Password = Password(pass)
		}
	}
	q := u.Query()
	if table := q.Get("table"); table != "" {
		c.Table = table
	}
	if secure := q.Get("secure"); secure != "" {
		v, err := strconv.ParseBool(secure)
		if err != nil {
			return fmt.Errorf("invalid secure value %q: %w", secure, err)
		}
		c.TLS = v
	}
	if timeout := q.Get("dial_timeout"); timeout != "" {
		v, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid dial_timeout value %q: %w", timeout, err)
		}
		c.DialTimeout = v
	}
	return nil
}

// ConfigFromURL resolves defaults, environment and URL into a checked
// configuration.
func ConfigFromURL(u *url.URL) (DbConfig, error) {
	var cfg DbConfig
	cfg.SetDefaults()
	if err := cfg.loadFromEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.applyURL(u); err != nil {
		return cfg, err
	}
	return cfg, cfg.Check()
}
