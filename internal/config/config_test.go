package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/dreamware/shardlist/internal/bucket"
	"github.com/dreamware/shardlist/internal/listing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 11, cfg.Shards)
	assert.Equal(t, 30, cfg.Dirs)
	assert.Equal(t, 100000, cfg.Entries)
	assert.False(t, cfg.Delimiter)
	assert.Equal(t, 10, cfg.MaxKeys)
	assert.Equal(t, 1000, cfg.ReadAhead)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shardlist.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
shards: 3
hash: xxh3
delimiter: true
max_keys: 50
monitor_interval: 250ms
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Shards)
		assert.Equal(t, "xxh3", cfg.Hash)
		assert.True(t, cfg.Delimiter)
		assert.Equal(t, 50, cfg.MaxKeys)
		assert.Equal(t, 250*time.Millisecond, cfg.MonitorInterval)
		// untouched fields keep their defaults
		assert.Equal(t, 30, cfg.Dirs)
		assert.Equal(t, 1000, cfg.ReadAhead)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("shards: [1, 2"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SHARDLIST_SHARDS", "5")
		t.Setenv("SHARDLIST_DELIMITER", "true")
		t.Setenv("SHARDLIST_READ_AHEAD", "0")
		t.Setenv("SHARDLIST_LISTEN", "127.0.0.1:9000")
		t.Setenv("SHARDLIST_MONITOR_INTERVAL", "1s")

		cfg := Default()
		require.NoError(t, cfg.ApplyEnv())
		assert.Equal(t, 5, cfg.Shards)
		assert.True(t, cfg.Delimiter)
		assert.Equal(t, 0, cfg.ReadAhead)
		assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
		assert.Equal(t, time.Second, cfg.MonitorInterval)
		assert.Equal(t, 10, cfg.MaxKeys)
	})

	t.Run("bad values are all reported", func(t *testing.T) {
		t.Setenv("SHARDLIST_SHARDS", "many")
		t.Setenv("SHARDLIST_DELIMITER", "sometimes")

		cfg := Default()
		err := cfg.ApplyEnv()
		require.Error(t, err)
		assert.Len(t, multierr.Errors(err), 2)
		assert.Equal(t, 11, cfg.Shards)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errors int
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "zero shards", modify: func(c *Config) { c.Shards = 0 }, errors: 1},
		{name: "unknown hash", modify: func(c *Config) { c.Hash = "crc32" }, errors: 1},
		{name: "negative sizes", modify: func(c *Config) { c.Dirs, c.Entries, c.MaxKeys, c.ReadAhead = -1, -1, -1, -1 }, errors: 4},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "loud" }, errors: 1},
		{name: "empty bucket", modify: func(c *Config) { c.Bucket = "" }, errors: 1},
		{name: "zero interval", modify: func(c *Config) { c.MonitorInterval = 0 }, errors: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.errors == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errs := multierr.Errors(err)
			assert.Len(t, errs, tt.errors)
			for _, e := range errs {
				assert.True(t, errors.Is(e, ErrInvalidConfig))
			}
		})
	}
}

func TestDelimAndHash(t *testing.T) {
	cfg := Default()
	assert.Equal(t, listing.NoDelimiter, cfg.Delim())

	cfg.Delimiter = true
	assert.Equal(t, listing.NewDelimiter('/'), cfg.Delim())

	cfg.Hash = "xxh3"
	assert.Equal(t, bucket.XXH3Hash("k", 7), cfg.HashFunc()("k", 7))
}
