package kvstore

// Store is the persistent key-value contract backing the sync layer: JSON
// (de)serialization, synchronous operations, and no error returns. Failures
// are logged inside the implementation; Get reports absent and the mutating
// operations silently no-op. Callers own forward-compatibility of stored
// shapes.
type Store interface {
	// Set serializes value to JSON and stores it under key.
	Set(key string, value any)
	// Get deserializes the value stored under key into out and reports
	// whether a usable value was found. Absent, malformed, and
	// storage-unavailable all read as false.
	Get(key string, out any) bool
	// Has reports whether key is present, without deserializing.
	Has(key string) bool
	// Remove deletes key.
	Remove(key string)
	// Clear deletes every key owned by the store.
	Clear()
	// Available reports whether the underlying storage is usable at all.
	// When false, writes are lost; the sync layer surfaces this only on the
	// write path.
	Available() bool
}
