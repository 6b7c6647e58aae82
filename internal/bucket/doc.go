// Package bucket holds a sharded bucket index: the shards, the hash placement
// that assigns keys to them, and the synthetic dataset loader used by the CLI,
// the HTTP server and the tests.
//
// Keys are routed with Placement.ShardForKey. Any uniform hash works for the
// listing algorithm; only which shard holds which key depends on it.
package bucket
