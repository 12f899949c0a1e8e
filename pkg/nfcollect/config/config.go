// Package config loads the collector configuration. Values are layered:
// defaults, then an optional YAML file, then NFC_ environment variables,
// then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nfcollect/nfcollect/transport"
)

const EnvPrefix = "NFC_"

// TemplatesConfig controls template persistence and expiry.
type TemplatesConfig struct {
	// State is a state URL (memory://, badger:///dir, redis://host/0).
	// Empty keeps templates in memory only.
	State string `yaml:"state" env:"STATE"`
	// TTL drops exporters silent for longer. Zero never expires them.
	TTL   time.Duration `yaml:"ttl" env:"TTL"`
	Sweep time.Duration `yaml:"sweep" env:"SWEEP"`
	Path  string        `yaml:"path" env:"PATH"`
}

// Config holds configuration for the nfc application.
type Config struct {
	// Listen is host:port or netflow://host:port?count=N&blocking=true&queue_size=N.
	Listen string   `yaml:"listen" env:"LISTEN"`
	Sinks  []string `yaml:"sinks" env:"SINKS" envSeparator:" "`

	LogLevel string `yaml:"loglevel" env:"LOGLEVEL"`
	LogFmt   string `yaml:"logfmt" env:"LOGFMT"`

	// Addr is the HTTP server address. Empty disables it.
	Addr string `yaml:"addr" env:"ADDR"`

	Templates TemplatesConfig `yaml:"templates" envPrefix:"TEMPLATES_"`

	StatsInterval time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL"`

	ErrCnt int           `yaml:"err_cnt" env:"ERR_CNT"`
	ErrInt time.Duration `yaml:"err_int" env:"ERR_INT"`
}

func Default() Config {
	return Config{
		Listen:   "127.0.0.1:9999",
		LogLevel: "info",
		LogFmt:   "normal",
		Addr:     ":8080",
		Templates: TemplatesConfig{
			Sweep: time.Minute,
			Path:  "/templates",
		},
		StatsInterval: 60 * time.Second,
		ErrCnt:        10,
		ErrInt:        10 * time.Second,
	}
}

// Decode overlays a YAML document on cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path when
// set, and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		err = Decode(f, &cfg)
		_ = f.Close()
		if err != nil {
			return cfg, fmt.Errorf("load config %s: decode: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("load config from environment: %w", err)
	}
	return cfg, nil
}

// Flags holds the command-line overrides. Only flags set by the user are
// applied on top of the loaded configuration. Logging flags are global and
// handled by the command.
type Flags struct {
	fs  *pflag.FlagSet
	val Config
}

// BindFlags registers configuration flags.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs, val: Default()}
	fs.StringVar(&f.val.Listen, "bind", f.val.Listen, "listen address")
	fs.StringArrayVar(&f.val.Sinks, "sink", nil,
		fmt.Sprintf("sink URL, repeatable (stores: %s; senders: %s)",
			strings.Join(transport.GetStores(), ", "), strings.Join(transport.GetSenders(), ", ")))
	fs.StringVar(&f.val.Addr, "addr", f.val.Addr, "HTTP server address, empty to disable")
	fs.StringVar(&f.val.Templates.State, "templates.state", "", "template persistence URL")
	fs.DurationVar(&f.val.Templates.TTL, "templates.ttl", 0, "drop templates of exporters silent for this long")
	fs.DurationVar(&f.val.Templates.Sweep, "templates.sweep", f.val.Templates.Sweep, "template expiry check interval")
	fs.StringVar(&f.val.Templates.Path, "templates.path", f.val.Templates.Path, "NetFlow templates list")
	fs.DurationVar(&f.val.StatsInterval, "stats.interval", f.val.StatsInterval, "statistics log interval")
	fs.IntVar(&f.val.ErrCnt, "err.cnt", f.val.ErrCnt, "Maximum errors per batch for muting")
	fs.DurationVar(&f.val.ErrInt, "err.int", f.val.ErrInt, "Maximum errors interval for muting")
	return f
}

// Apply copies the flags set on the command line into cfg.
func (f *Flags) Apply(cfg *Config) {
	set := map[string]func(){
		"bind":            func() { cfg.Listen = f.val.Listen },
		"sink":            func() { cfg.Sinks = f.val.Sinks },
		"addr":            func() { cfg.Addr = f.val.Addr },
		"templates.state": func() { cfg.Templates.State = f.val.Templates.State },
		"templates.ttl":   func() { cfg.Templates.TTL = f.val.Templates.TTL },
		"templates.sweep": func() { cfg.Templates.Sweep = f.val.Templates.Sweep },
		"templates.path":  func() { cfg.Templates.Path = f.val.Templates.Path },
		"stats.interval":  func() { cfg.StatsInterval = f.val.StatsInterval },
		"err.cnt":         func() { cfg.ErrCnt = f.val.ErrCnt },
		"err.int":         func() { cfg.ErrInt = f.val.ErrInt },
	}
	f.fs.Visit(func(fl *pflag.Flag) {
		if apply, ok := set[fl.Name]; ok {
			apply()
		}
	})
}

// Validate checks the values that cannot be checked when parsing.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if len(c.Sinks) == 0 {
		return errors.New("at least one sink is required")
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats interval must be positive, got %v", c.StatsInterval)
	}
	if c.Templates.TTL < 0 {
		return fmt.Errorf("templates ttl must not be negative, got %v", c.Templates.TTL)
	}
	if c.Templates.TTL > 0 && c.Templates.Sweep <= 0 {
		return fmt.Errorf("templates sweep must be positive when ttl is set, got %v", c.Templates.Sweep)
	}
	return nil
}
