package port

// Cache is a bounded key-value cache safe for concurrent use.
type Cache[K comparable, V any] interface {
	// Get returns the value for key, or false when it is missing or expired.
	Get(key K) (V, bool)

	// Set stores value under key. A full cache may evict older entries.
	Set(key K, value V)

	Remove(key K)
	Len() int
}
