package bucket

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/dreamware/shardlist/internal/shard"
)

// Bucket is a sharded object index: an ordered collection of shards plus the
// placement that decides which shard owns each key.
type Bucket struct {
	Name      string
	placement *Placement
	shards    []*shard.Shard
}

// Option configures a Bucket.
type Option func(*options)

type options struct {
	hash HashFunc
}

// WithHash selects the placement hash. The default is MD5Hash.
func WithHash(h HashFunc) Option {
	return func(o *options) { o.hash = h }
}

// New creates an empty bucket with numShards shards.
func New(name string, numShards int, opts ...Option) (*Bucket, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	placement, err := NewPlacement(numShards, o.hash)
	if err != nil {
		return nil, errors.Wrapf(err, "bucket %q", name)
	}

	shards := make([]*shard.Shard, numShards)
	for i := range shards {
		shards[i] = shard.NewShard(i)
	}

	return &Bucket{
		Name:      name,
		placement: placement,
		shards:    shards,
	}, nil
}

// Put adds an object key without a body to the shard that owns it.
func (b *Bucket) Put(key string) error {
	return b.PutObject(key, nil)
}

// PutObject stores key and its body on the shard that owns it, replacing
// any earlier body.
func (b *Bucket) PutObject(key string, body []byte) error {
	id := b.placement.ShardForKey(key)
	if err := b.shards[id].Put(key, body); err != nil {
		return errors.Wrapf(err, "bucket %q: shard %d", b.Name, id)
	}
	return nil
}

// Get returns the body stored with key. A missing key wraps
// storage.ErrKeyNotFound.
func (b *Bucket) Get(key string) ([]byte, error) {
	id := b.placement.ShardForKey(key)
	body, err := b.shards[id].Get(key)
	if err != nil {
		return nil, errors.Wrapf(err, "bucket %q: shard %d", b.Name, id)
	}
	return body, nil
}

// Delete removes an object key from its shard. Deleting a missing key is not
// an error.
func (b *Bucket) Delete(key string) error {
	id := b.placement.ShardForKey(key)
	if err := b.shards[id].Delete(key); err != nil {
		return errors.Wrapf(err, "bucket %q: shard %d", b.Name, id)
	}
	return nil
}

// Owner returns the shard that owns key.
func (b *Bucket) Owner(key string) *shard.Shard {
	return b.shards[b.placement.ShardForKey(key)]
}

// Shard returns the shard with the given ID, nil when out of range.
func (b *Bucket) Shard(id int) *shard.Shard {
	if id < 0 || id >= len(b.shards) {
		return nil
	}
	return b.shards[id]
}

// Shards returns the bucket's shards in ID order.
func (b *Bucket) Shards() []*shard.Shard {
	return slices.Clone(b.shards)
}

// NumShards returns the number of shards.
func (b *Bucket) NumShards() int {
	return len(b.shards)
}

// Len returns the number of keys across all shards.
func (b *Bucket) Len() int {
	n := 0
	for _, s := range b.shards {
		n += s.Store.Stats().Keys
	}
	return n
}

// Keys returns every key in the bucket in global byte order. It reads every
// shard in full and exists for verification, not for serving listings.
func (b *Bucket) Keys() []string {
	keys := make([]string, 0, b.Len())
	for _, s := range b.shards {
		keys = append(keys, s.ListKeys()...)
	}
	slices.Sort(keys)
	return keys
}
