package store

// KeyedStore is the shared keyed-state abstraction the decision services are
// built on. Implementations must serialize all mutations for a given key so
// that a read-modify-write sequence executed inside Update is atomic with
// respect to concurrent callers of the same key.
type KeyedStore[V any] interface {
	// Get returns the value for key, if present
	Get(key string) (V, bool)

	// Put stores value under key, replacing any existing value
	Put(key string, value V)

	// Delete removes key and reports whether it was present
	Delete(key string) bool

	// Update runs fn while holding the key's lock. fn receives the current
	// value (zero value, false when absent) and returns the value to store;
	// returning remove=true deletes the key instead. Decisions derived from
	// the current value must be computed inside fn.
	Update(key string, fn func(current V, exists bool) (next V, remove bool))

	// Sweep visits every entry, deleting those fn returns true for, and
	// returns the number deleted. Locks are held per shard, never globally.
	Sweep(fn func(key string, value V) bool) int

	// Len returns the number of stored entries
	Len() int
}
