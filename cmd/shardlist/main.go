// Command shardlist simulates ordered listing over a hash-sharded bucket
// index, serves such a bucket over HTTP, and lists a served bucket.
//
// Usage:
//
//	shardlist [-s shards] [-d dirs] [-e entries] [-l] [-m max-keys] [-r read-ahead]
//	shardlist serve [--listen :8080]
//	shardlist ls [--addr http://localhost:8080]
//
// Settings come from defaults, then --config, then SHARDLIST_* environment
// variables, then flags.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
