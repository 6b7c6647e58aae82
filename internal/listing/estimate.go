package listing

import "math"

const (
	// MaxAttempts bounds the scans per shard query and the rounds a page
	// may take before it settles for a partial result.
	MaxAttempts = 8

	// MinShardQuota is the smallest number of entries requested from a shard
	// in one round.
	MinShardQuota = 8
)

// Estimate sizes a per-shard request so that one round over shardCount shards
// is very likely to yield targetCount entries in total.
//
// Based on "Balls into Bins - A Simple and Tight Analysis" (Raab, Steger):
//
//	1 + n/s + sqrt(2·n·ln(s)/s)
//
// truncated toward zero. For a single shard it is exactly 1 + n.
func Estimate(targetCount, shardCount int) int {
	if targetCount < 0 {
		targetCount = 0
	}
	if shardCount < 1 {
		shardCount = 1
	}
	n, s := float64(targetCount), float64(shardCount)
	return int(1 + n/s + math.Sqrt(2*n*math.Log(s)/s))
}

// ShardQuota is Estimate floored at MinShardQuota.
func ShardQuota(targetCount, shardCount int) int {
	return max(Estimate(targetCount, shardCount), MinShardQuota)
}
