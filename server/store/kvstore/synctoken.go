package kvstore

import "github.com/pkg/errors"

// SyncTokenStore persists the /sync position of one Matrix user.
type SyncTokenStore struct {
	kv     KVStore
	userID string
}

// NewSyncTokenStore creates a token store for matrixUserID.
func NewSyncTokenStore(kv KVStore, matrixUserID string) *SyncTokenStore {
	return &SyncTokenStore{kv: kv, userID: matrixUserID}
}

// GetSyncToken returns the stored token, or "" when none has been stored.
func (s *SyncTokenStore) GetSyncToken() (string, error) {
	data, err := s.kv.Get(BuildSyncTokenKey(s.userID))
	if err != nil {
		return "", errors.Wrap(err, "failed to load sync token")
	}
	return string(data), nil
}

// SetSyncToken stores token.
func (s *SyncTokenStore) SetSyncToken(token string) error {
	if err := s.kv.Set(BuildSyncTokenKey(s.userID), []byte(token)); err != nil {
		return errors.Wrap(err, "failed to save sync token")
	}
	return nil
}

// Clear forgets the stored token so the next sync starts from scratch.
func (s *SyncTokenStore) Clear() error {
	if err := s.kv.Delete(BuildSyncTokenKey(s.userID)); err != nil {
		return errors.Wrap(err, "failed to clear sync token")
	}
	return nil
}
