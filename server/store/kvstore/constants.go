package kvstore

// KV Store key prefixes and constants
// This file centralizes all KV store key patterns used throughout the plugin
// to ensure consistency and avoid key conflicts.

const (
	// KeyPrefixSyncToken is the prefix for Matrix user ID -> /sync next_batch token
	KeyPrefixSyncToken = "sync_token_"

	// KeyPrefixTransaction is the prefix for processed application service transaction IDs
	KeyPrefixTransaction = "as_txn_"
)

// BuildSyncTokenKey creates a key for the sync position of a Matrix user
func BuildSyncTokenKey(matrixUserID string) string {
	return KeyPrefixSyncToken + matrixUserID
}

// BuildTransactionKey creates a key for a processed transaction
func BuildTransactionKey(txnID string) string {
	return KeyPrefixTransaction + txnID
}
