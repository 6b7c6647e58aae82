package bucket

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/dreamware/shardlist/internal/storage"
)

// TestNewPlacement tests placement creation
func TestNewPlacement(t *testing.T) {
	tests := []struct {
		name      string
		numShards int
		wantErr   bool
	}{
		{name: "single shard", numShards: 1},
		{name: "default shard count", numShards: 11},
		{name: "zero shards", numShards: 0, wantErr: true},
		{name: "negative shards", numShards: -3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPlacement(tt.numShards, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidShardCount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.numShards, p.NumShards())
		})
	}
}

// TestPlacementDistribution checks keys land in range, deterministically and
// roughly uniformly
func TestPlacementDistribution(t *testing.T) {
	for name, hash := range map[string]HashFunc{"md5": MD5Hash, "xxh3": XXH3Hash} {
		t.Run(name, func(t *testing.T) {
			p, err := NewPlacement(11, hash)
			require.NoError(t, err)
			checkDistribution(t, p)
		})
	}
}

func checkDistribution(t *testing.T, p *Placement) {
	counts := make([]int, p.NumShards())
	total := 11000
	for i := 0; i < total; i++ {
		key := ObjectName(i/1000, i%1000)
		id := p.ShardForKey(key)
		require.GreaterOrEqual(t, id, 0)
		require.Less(t, id, p.NumShards())
		assert.Equal(t, id, p.ShardForKey(key), "placement must be deterministic")
		counts[id]++
	}

	expected := total / p.NumShards()
	for id, c := range counts {
		assert.InDelta(t, expected, c, float64(expected)/4, "shard %d holds %d keys", id, c)
	}
}

func TestParseHash(t *testing.T) {
	for _, name := range []string{"", "md5", "MD5", "xxh3"} {
		h, err := ParseHash(name)
		require.NoError(t, err, name)
		id := h("dir00/file000000", 11)
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, 11)
	}

	_, err := ParseHash("crc32")
	assert.Error(t, err)
}

// TestMD5Hash pins placement against values computed independently from the
// big-endian digest
func TestMD5Hash(t *testing.T) {
	assert.Equal(t, 0, MD5Hash("anything", 1))
	for _, key := range []string{"dir00/file000000", "dir29/file099999", "a"} {
		assert.Equal(t, MD5Hash(key, 11), MD5Hash(key, 11))
	}
	assert.Equal(t, 9, MD5Hash("dir00/file000000", 11))
	assert.Equal(t, 7, MD5Hash("dir29/file099999", 11))
	assert.Equal(t, 3, MD5Hash("a", 11))
	assert.Equal(t, 973424, MD5Hash("dir00/file000000", 1000003))
}

func TestBucket(t *testing.T) {
	t.Run("invalid shard count", func(t *testing.T) {
		_, err := New("photos", 0)
		assert.True(t, errors.Is(err, ErrInvalidShardCount))
	})

	t.Run("hash option", func(t *testing.T) {
		b, err := New("photos", 7, WithHash(XXH3Hash))
		require.NoError(t, err)
		require.NoError(t, b.Put("dir00/file000000"))
		assert.Equal(t, XXH3Hash("dir00/file000000", 7), b.Owner("dir00/file000000").ID)
	})

	t.Run("put routes to the owner", func(t *testing.T) {
		b, err := New("photos", 4)
		require.NoError(t, err)

		for i := 0; i < 100; i++ {
			key := fmt.Sprintf("k%03d", i)
			require.NoError(t, b.Put(key))
			_, err := b.Owner(key).Get(key)
			assert.NoError(t, err)
		}

		assert.Equal(t, 100, b.Len())
		assert.Equal(t, 4, b.NumShards())
		assert.Len(t, b.Shards(), 4)
		assert.Nil(t, b.Shard(4))
		assert.Nil(t, b.Shard(-1))
		assert.Equal(t, 2, b.Shard(2).ID)
	})

	t.Run("delete", func(t *testing.T) {
		b, err := New("photos", 3)
		require.NoError(t, err)
		require.NoError(t, b.Put("a"))
		require.NoError(t, b.Put("b"))

		require.NoError(t, b.Delete("a"))
		require.NoError(t, b.Delete("missing"))
		assert.Equal(t, []string{"b"}, b.Keys())
	})

	t.Run("object bodies round trip through the owner", func(t *testing.T) {
		b, err := New("photos", 4)
		require.NoError(t, err)
		require.NoError(t, b.PutObject("2024/a.jpg", []byte("jpeg")))
		require.NoError(t, b.Put("2024/b.jpg"))

		body, err := b.Get("2024/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg"), body)
		assert.Equal(t, uint64(1), b.Owner("2024/a.jpg").GetStats().Ops.Gets)

		body, err = b.Get("2024/b.jpg")
		require.NoError(t, err)
		assert.Empty(t, body)

		_, err = b.Get("2024/missing.jpg")
		assert.True(t, errors.Is(err, storage.ErrKeyNotFound))
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		b, err := New("photos", 2)
		require.NoError(t, err)
		assert.Error(t, b.Put(""))
	})

	t.Run("keys are globally sorted", func(t *testing.T) {
		b, err := New("photos", 5)
		require.NoError(t, err)
		for _, k := range []string{"z", "a/b", "m", "a", "b/c/d"} {
			require.NoError(t, b.Put(k))
		}
		keys := b.Keys()
		assert.Equal(t, []string{"a", "a/b", "b/c/d", "m", "z"}, keys)
		assert.True(t, slices.IsSorted(keys))
	})
}

func TestPopulate(t *testing.T) {
	t.Run("synthetic names", func(t *testing.T) {
		assert.Equal(t, "dir00/file000000", ObjectName(0, 0))
		assert.Equal(t, "dir29/file099999", ObjectName(29, 99999))
	})

	t.Run("fills every directory", func(t *testing.T) {
		b, err := New("synthetic", 11)
		require.NoError(t, err)

		require.NoError(t, Populate(context.Background(), b, 3, 50, nil))
		assert.Equal(t, 150, b.Len())

		keys := b.Keys()
		assert.Equal(t, "dir00/file000000", keys[0])
		assert.Equal(t, "dir02/file000049", keys[len(keys)-1])
	})

	t.Run("canceled context stops population", func(t *testing.T) {
		b, err := New("synthetic", 2)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = Populate(ctx, b, 2, 10, nil)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("negative sizes", func(t *testing.T) {
		b, err := New("synthetic", 2)
		require.NoError(t, err)
		assert.Error(t, Populate(context.Background(), b, -1, 10, nil))
	})
}
