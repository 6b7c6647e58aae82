package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardlist/internal/bucket"
	"github.com/dreamware/shardlist/internal/config"
	"github.com/dreamware/shardlist/internal/server"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestSimulate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "keys",
			args: []string{"-s", "3", "-d", "2", "-e", "50", "-m", "20", "-r", "0"},
			want: []string{
				"creating bucket with 3 shards, 2 dirs with 50 entries each",
				"1 list requests were made",
				"3 shard requests were made",
				"3 index queries were submitted",
				"33 rows were returned",
				"20 entries were listed",
			},
		},
		{
			name: "delimiter",
			args: []string{"--shards=3", "--dirs=2", "--entries=50", "--max-keys=20", "--read-ahead=0", "--delimiter"},
			want: []string{
				"1 list requests were made",
				"24 shard requests were made",
				"6 index queries were submitted",
				"63 rows were returned",
				"2 entries were listed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append(tt.args, "--log-level", "error")...)
			require.NoError(t, err)
			for _, line := range tt.want {
				assert.Contains(t, out, line+"\n")
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shardlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shards: 2\ndirs: 1\nentries: 10\nmax_keys: 5\nlog_level: error\n"), 0o600))

	t.Run("file", func(t *testing.T) {
		out, err := run(t, "--config", path, "-r", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "creating bucket with 2 shards, 1 dirs with 10 entries each")
		assert.Contains(t, out, "5 entries were listed")
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv(config.EnvPrefix+"ENTRIES", "20")
		out, err := run(t, "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "1 dirs with 20 entries each")
	})

	t.Run("flags over environment", func(t *testing.T) {
		t.Setenv(config.EnvPrefix+"ENTRIES", "20")
		out, err := run(t, "--config", path, "-e", "7")
		require.NoError(t, err)
		assert.Contains(t, out, "1 dirs with 7 entries each")
	})
}

func TestInvalidConfiguration(t *testing.T) {
	_, err := run(t, "-s", "0", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shards must be at least 1")

	_, err = run(t, "--hash", "crc32")
	assert.Error(t, err)

	_, err = run(t, "unexpected-arg")
	assert.Error(t, err)
}

func TestLs(t *testing.T) {
	b, err := bucket.New("photos", 3)
	require.NoError(t, err)
	for _, k := range []string{"a", "b/1", "b/2", "c", "d/e/f"} {
		require.NoError(t, b.Put(k))
	}
	s, err := server.New(b, nil, server.Options{})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	t.Run("keys", func(t *testing.T) {
		out, err := run(t, "ls", "--addr", ts.URL, "--bucket", "photos", "-m", "2", "--log-level", "error")
		require.NoError(t, err)
		assert.Equal(t, "a\nb/1\nb/2\nc\nd/e/f\n", out)
	})

	t.Run("prefixes after a marker", func(t *testing.T) {
		out, err := run(t, "ls", "a", "--addr", ts.URL, "--bucket", "photos", "-l", "--log-level", "error")
		require.NoError(t, err)
		assert.Equal(t, []string{"PRE b/", "c", "PRE d/"}, strings.Split(strings.TrimSpace(out), "\n"))
	})

	t.Run("unknown bucket", func(t *testing.T) {
		_, err := run(t, "ls", "--addr", ts.URL, "--bucket", "videos", "--log-level", "error")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NoSuchBucket")
	})
}
