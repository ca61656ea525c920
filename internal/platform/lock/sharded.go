// Package lock provides in-process keyed mutual exclusion.
package lock

import (
	"context"
	"hash/fnv"

	dErrors "campusid/pkg/domain-errors"
)

// numShards bounds memory while keeping unrelated keys mostly uncontended.
const numShards = 64

// Sharded serializes holders of the same key within one process. Distinct
// keys may share a shard, which only costs throughput.
type Sharded struct {
	shards [numShards]chan struct{}
}

// NewSharded creates a sharded lock.
func NewSharded() *Sharded {
	l := &Sharded{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

// Lock blocks until key is held or ctx is done. The returned func releases it.
func (l *Sharded) Lock(ctx context.Context, key string) (func(), error) {
	shard := l.shards[shardFor(key)]
	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "lock aborted: context cancelled")
	}
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % numShards
}
