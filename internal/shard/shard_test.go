package shard

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardlist/internal/listing"
)

func newTestShard(t *testing.T, keys ...string) *Shard {
	t.Helper()
	s := NewShard(0)
	for _, k := range keys {
		require.NoError(t, s.Put(k, nil))
	}
	return s
}

// directoryShard holds dirs×files keys named like the synthetic bucket dataset
func directoryShard(t *testing.T, dirs, files int) *Shard {
	t.Helper()
	s := NewShard(0)
	for d := 0; d < dirs; d++ {
		for f := 0; f < files; f++ {
			require.NoError(t, s.Put(fmt.Sprintf("dir%02d/file%06d", d, f), nil))
		}
	}
	return s
}

// TestNewShard tests shard creation
func TestNewShard(t *testing.T) {
	s := NewShard(7)

	require.NotNil(t, s)
	assert.Equal(t, 7, s.ID)
	assert.NotNil(t, s.Store)
	assert.NotNil(t, s.Stats)
	assert.Empty(t, s.ListKeys())
}

// TestShardOperations tests the key-value surface and its counters
func TestShardOperations(t *testing.T) {
	s := NewShard(1)

	require.NoError(t, s.Put("b", []byte("2")))
	require.NoError(t, s.Put("a", []byte("1")))

	v, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	require.NoError(t, s.Delete("a"))
	_, err = s.Get("a")
	assert.Error(t, err)

	assert.Equal(t, []string{"b"}, s.ListKeys())

	stats := s.GetStats()
	assert.Equal(t, uint64(2), stats.Ops.Gets)
	assert.Equal(t, uint64(2), stats.Ops.Puts)
	assert.Equal(t, uint64(1), stats.Ops.Deletes)
	assert.Equal(t, 1, stats.Storage.Keys)

	info := s.Info()
	assert.Equal(t, 1, info.ID)
	assert.Equal(t, 1, info.KeyCount)
	assert.Equal(t, "b", info.LastKey)
}

// TestShardQuery tests the ranged scan with delimiter collapsing and retries
func TestShardQuery(t *testing.T) {
	slash := listing.NewDelimiter('/')

	tests := []struct {
		name          string
		keys          []string
		query         listing.Query
		wantItems     []string
		wantTruncated bool
		wantRows      int
		wantQueries   int
	}{
		{
			name:          "empty shard",
			query:         listing.Query{Quota: 10},
			wantItems:     nil,
			wantTruncated: false,
		},
		{
			name:          "quota stops emission",
			keys:          []string{"a", "b", "c", "d", "e"},
			query:         listing.Query{Quota: 2},
			wantItems:     []string{"a", "b"},
			wantTruncated: true,
			wantRows:      2,
			wantQueries:   1,
		},
		{
			name:          "whole shard fits",
			keys:          []string{"a", "b", "c"},
			query:         listing.Query{Quota: 10},
			wantItems:     []string{"a", "b", "c"},
			wantTruncated: false,
			wantRows:      3,
			wantQueries:   1,
		},
		{
			name:          "prefixes and plain keys",
			keys:          []string{"a/1", "a/2", "a/3", "b/1", "c"},
			query:         listing.Query{Delimiter: slash, Quota: 10},
			wantItems:     []string{"a/", "b/", "c"},
			wantTruncated: false,
			wantRows:      5,
			wantQueries:   1,
		},
		{
			name: "retries skip collapsed groups with shrinking scans",
			keys: []string{
				"dir00/f0", "dir00/f1", "dir00/f2", "dir00/f3", "dir00/f4",
				"dir01/f0", "dir01/f1", "dir01/f2", "dir01/f3", "dir01/f4",
				"dir02/f0",
			},
			query:         listing.Query{Delimiter: slash, Quota: 3},
			wantItems:     []string{"dir00/", "dir01/", "dir02/"},
			wantTruncated: false,
			wantRows:      3 + 2 + 1,
			wantQueries:   3,
		},
		{
			name:          "quota met before the shard's last row is surfaced",
			keys:          []string{"a/1", "a/2", "b", "c", "d"},
			query:         listing.Query{Delimiter: slash, Quota: 3},
			wantItems:     []string{"a/", "b", "c"},
			wantTruncated: true,
			wantRows:      3 + 2,
			wantQueries:   2,
		},
		{
			name:          "quota met with only the current group left",
			keys:          []string{"a/1", "a/2", "b", "c/1", "c/2"},
			query:         listing.Query{Delimiter: slash, Quota: 3},
			wantItems:     []string{"a/", "b", "c/"},
			wantTruncated: false,
			wantRows:      3 + 2,
			wantQueries:   2,
		},
		{
			name:          "resume after a prefix group",
			keys:          []string{"a/1", "a/2", "b/1", "b/2", "c/1"},
			query:         listing.Query{Cursor: listing.AfterPrefix("a/"), Delimiter: slash, Quota: 10},
			wantItems:     []string{"b/", "c/"},
			wantTruncated: false,
			wantRows:      3,
			wantQueries:   1,
		},
		{
			name:          "resume after a key",
			keys:          []string{"a", "b", "c"},
			query:         listing.Query{Cursor: listing.After("a"), Quota: 10},
			wantItems:     []string{"b", "c"},
			wantTruncated: false,
			wantRows:      2,
			wantQueries:   1,
		},
		{
			name:          "cursor past the end",
			keys:          []string{"a", "b"},
			query:         listing.Query{Cursor: listing.After("b"), Quota: 10},
			wantItems:     []string{},
			wantTruncated: false,
		},
		{
			name:          "non-positive quota is raised to one",
			keys:          []string{"a", "b"},
			query:         listing.Query{Quota: 0},
			wantItems:     []string{"a"},
			wantTruncated: true,
			wantRows:      1,
			wantQueries:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestShard(t, tt.keys...)

			res, err := s.Query(context.Background(), tt.query)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.wantItems, res.Items); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantTruncated, res.IsTruncated)
			assert.Equal(t, tt.wantRows, res.Telemetry.RowsRead)
			assert.Equal(t, tt.wantQueries, res.Telemetry.Queries)
		})
	}
}

// TestShardQueryAttemptCeiling checks that one call yields at most one
// prefix per scan attempt when every directory outlasts the scan size
func TestShardQueryAttemptCeiling(t *testing.T) {
	s := directoryShard(t, 30, 20)

	t.Run("no delimiter", func(t *testing.T) {
		res, err := s.Query(context.Background(), listing.Query{Quota: 10})
		require.NoError(t, err)
		assert.Len(t, res.Items, 10)
		assert.True(t, res.IsTruncated)
	})

	t.Run("delimiter", func(t *testing.T) {
		res, err := s.Query(context.Background(), listing.Query{Delimiter: listing.NewDelimiter('/'), Quota: 10})
		require.NoError(t, err)

		want := make([]string, 0, listing.MaxAttempts)
		for d := 0; d < listing.MaxAttempts; d++ {
			want = append(want, fmt.Sprintf("dir%02d/", d))
		}
		if diff := cmp.Diff(want, res.Items); diff != "" {
			t.Errorf("items mismatch (-want +got):\n%s", diff)
		}
		assert.True(t, res.IsTruncated)
		assert.Equal(t, listing.MaxAttempts, res.Telemetry.Queries)
		// attempt k scans 11-k rows
		assert.Equal(t, 10+9+8+7+6+5+4+3, res.Telemetry.RowsRead)
	})
}

// TestShardQueryOrdering checks output is strictly increasing and matches a
// full sorted scan with the same collapsing rule
func TestShardQueryOrdering(t *testing.T) {
	keys := []string{"a", "a/1", "a/2", "a0", "b/x/y", "b/z", "c", "d/", "d/e", "e"}
	s := newTestShard(t, keys...)
	slash := listing.NewDelimiter('/')

	res, err := s.Query(context.Background(), listing.Query{Delimiter: slash, Quota: 100})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a/", "a0", "b/", "c", "d/", "e"}, res.Items)
	for i := 1; i < len(res.Items); i++ {
		assert.Less(t, res.Items[i-1], res.Items[i])
	}
}

func TestShardQueryCanceled(t *testing.T) {
	s := newTestShard(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Query(ctx, listing.Query{Quota: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestShardQueryCountsLists(t *testing.T) {
	s := newTestShard(t, "a")
	for i := 0; i < 3; i++ {
		_, err := s.Query(context.Background(), listing.Query{Quota: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), s.GetStats().Ops.Lists)
}
