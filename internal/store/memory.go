package store

import (
	"hash/fnv"
	"sync"
)

const defaultShardCount = 32

// MemoryStore is a sharded in-memory KeyedStore. Keys are hashed onto a
// fixed set of shards, each guarded by its own mutex, so a hot key only
// contends with keys in its own shard and sweeps never stop the world.
type MemoryStore[V any] struct {
	shards []*shard[V]
	mask   uint32
}

type shard[V any] struct {
	mu      sync.Mutex
	entries map[string]V
}

// NewMemoryStore creates a MemoryStore with the default shard count
func NewMemoryStore[V any]() *MemoryStore[V] {
	return NewMemoryStoreWithShards[V](defaultShardCount)
}

// NewMemoryStoreWithShards creates a MemoryStore with n shards, rounded up
// to a power of two
func NewMemoryStoreWithShards[V any](n int) *MemoryStore[V] {
	count := 1
	for count < n {
		count <<= 1
	}
	shards := make([]*shard[V], count)
	for i := range shards {
		shards[i] = &shard[V]{entries: make(map[string]V)}
	}
	return &MemoryStore[V]{shards: shards, mask: uint32(count - 1)}
}

func (s *MemoryStore[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()&s.mask]
}

func (s *MemoryStore[V]) Get(key string) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.entries[key]
	return v, ok
}

func (s *MemoryStore[V]) Put(key string, value V) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.entries[key] = value
}

func (s *MemoryStore[V]) Delete(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[key]; !ok {
		return false
	}
	delete(sh.entries, key)
	return true
}

func (s *MemoryStore[V]) Update(key string, fn func(current V, exists bool) (V, bool)) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, exists := sh.entries[key]
	next, remove := fn(current, exists)
	if remove {
		delete(sh.entries, key)
		return
	}
	sh.entries[key] = next
}

func (s *MemoryStore[V]) Sweep(fn func(key string, value V) bool) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.entries {
			if fn(k, v) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func (s *MemoryStore[V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

// Snapshot returns a copy of all entries. Intended for administrative
// listings, not hot-path use.
func (s *MemoryStore[V]) Snapshot() map[string]V {
	out := make(map[string]V, s.Len())
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.entries {
			out[k] = v
		}
		sh.mu.Unlock()
	}
	return out
}
