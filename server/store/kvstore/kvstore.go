package kvstore

import "time"

// KVStore is the subset of the plugin KV API used by the DM index host.
type KVStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// SetIfAbsent stores value only when key does not exist yet and reports whether it did so.
	// A positive ttl makes the key expire.
	SetIfAbsent(key string, value []byte, ttl time.Duration) (bool, error)
	Delete(key string) error
	ListKeys(page, perPage int) ([]string, error)
}
