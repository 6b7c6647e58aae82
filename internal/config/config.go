// Package config loads shardlist settings from defaults, an optional YAML
// file and SHARDLIST_* environment variables, in that order of precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/shardlist/internal/bucket"
	"github.com/dreamware/shardlist/internal/listing"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHARDLIST_"

// ErrInvalidConfig is wrapped by every error Validate returns.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the dataset shape, the default listing request and the
// server settings.
type Config struct {
	Bucket  string `yaml:"bucket"`
	Shards  int    `yaml:"shards"`
	Hash    string `yaml:"hash"` // placement hash: md5 or xxh3
	Dirs    int    `yaml:"dirs"`
	Entries int    `yaml:"entries"` // files per directory

	Delimiter bool `yaml:"delimiter"` // list with '/' as delimiter
	MaxKeys   int  `yaml:"max_keys"`
	ReadAhead int  `yaml:"read_ahead"`

	Listen          string        `yaml:"listen"`
	LogLevel        string        `yaml:"log_level"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Bucket:          "bucket",
		Shards:          11,
		Hash:            "md5",
		Dirs:            30,
		Entries:         100000,
		MaxKeys:         10,
		ReadAhead:       1000,
		Listen:          ":8080",
		LogLevel:        "info",
		MonitorInterval: 10 * time.Second,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SHARDLIST_* variables, e.g. SHARDLIST_SHARDS
// or SHARDLIST_MAX_KEYS. Unset or empty variables leave the field alone.
func (c *Config) ApplyEnv() error {
	var errs error
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierr.Append(errs, errors.Errorf("%s%s: %q is not an integer", EnvPrefix, name, v))
				return
			}
			*dst = n
		}
	}

	str("BUCKET", &c.Bucket)
	num("SHARDS", &c.Shards)
	str("HASH", &c.Hash)
	num("DIRS", &c.Dirs)
	num("ENTRIES", &c.Entries)
	num("MAX_KEYS", &c.MaxKeys)
	num("READ_AHEAD", &c.ReadAhead)
	str("LISTEN", &c.Listen)
	str("LOG_LEVEL", &c.LogLevel)

	if v := getenv("DELIMITER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("%sDELIMITER: %q is not a boolean", EnvPrefix, v))
		} else {
			c.Delimiter = b
		}
	}
	if v := getenv("MONITOR_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("%sMONITOR_INTERVAL: %q is not a duration", EnvPrefix, v))
		} else {
			c.MonitorInterval = d
		}
	}
	return errs
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs error
	fail := func(format string, args ...any) {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidConfig, format, args...))
	}

	if c.Bucket == "" {
		fail("bucket name is empty")
	}
	if c.Shards < 1 {
		fail("shards must be at least 1, got %d", c.Shards)
	}
	if _, err := bucket.ParseHash(c.Hash); err != nil {
		fail("%v", err)
	}
	if c.Dirs < 0 {
		fail("dirs must not be negative, got %d", c.Dirs)
	}
	if c.Entries < 0 {
		fail("entries must not be negative, got %d", c.Entries)
	}
	if c.MaxKeys < 0 {
		fail("max keys must not be negative, got %d", c.MaxKeys)
	}
	if c.ReadAhead < 0 {
		fail("read ahead must not be negative, got %d", c.ReadAhead)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		fail("log level %q", c.LogLevel)
	}
	if c.MonitorInterval <= 0 {
		fail("monitor interval must be positive, got %s", c.MonitorInterval)
	}
	return errs
}

// Delim returns the listing delimiter the config selects.
func (c Config) Delim() listing.Delimiter {
	if c.Delimiter {
		return listing.NewDelimiter('/')
	}
	return listing.NoDelimiter
}

// HashFunc returns the configured placement hash, MD5Hash when unrecognized.
func (c Config) HashFunc() bucket.HashFunc {
	h, err := bucket.ParseHash(c.Hash)
	if err != nil {
		return bucket.MD5Hash
	}
	return h
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}
