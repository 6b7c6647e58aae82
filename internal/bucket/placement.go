package bucket

import (
	"crypto/md5"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// ErrInvalidShardCount is returned when a bucket is configured with fewer than one shard.
var ErrInvalidShardCount = errors.New("shard count must be at least 1")

// HashFunc maps a key to a shard ID in [0, numShards).
type HashFunc func(key string, numShards int) int

// MD5Hash reads the key's MD5 digest as a big-endian 128-bit integer and
// reduces it modulo numShards. It is the default placement.
func MD5Hash(key string, numShards int) int {
	digest := md5.Sum([]byte(key))
	n := uint64(numShards)
	var rem uint64
	for _, b := range digest {
		rem = (rem<<8 | uint64(b)) % n
	}
	return int(rem)
}

// XXH3Hash reduces the 64-bit XXH3 hash of the key modulo numShards.
func XXH3Hash(key string, numShards int) int {
	return int(xxh3.HashString(key) % uint64(numShards))
}

// ParseHash returns the hash function registered under name ("md5" or "xxh3").
func ParseHash(name string) (HashFunc, error) {
	switch strings.ToLower(name) {
	case "", "md5":
		return MD5Hash, nil
	case "xxh3":
		return XXH3Hash, nil
	default:
		return nil, errors.Errorf("unknown placement hash %q", name)
	}
}

// Placement maps object keys to shards by hashing, giving every shard an
// independent, roughly uniform slice of the key space.
//
// The listing request sizing assumes uniform placement; which hash provides
// it only changes which shard holds which key. The mapping is fixed for the
// bucket lifetime: changing the shard count requires rebuilding the index.
type Placement struct {
	numShards int
	hash      HashFunc
}

// NewPlacement creates a placement over numShards shards. A nil hash selects MD5Hash.
func NewPlacement(numShards int, hash HashFunc) (*Placement, error) {
	if numShards < 1 {
		return nil, errors.Wrapf(ErrInvalidShardCount, "got %d", numShards)
	}
	if hash == nil {
		hash = MD5Hash
	}
	return &Placement{numShards: numShards, hash: hash}, nil
}

// ShardForKey returns the shard ID in [0, NumShards) that owns key.
func (p *Placement) ShardForKey(key string) int {
	return p.hash(key, p.numShards)
}

// NumShards returns the total number of shards.
func (p *Placement) NumShards() int {
	return p.numShards
}
