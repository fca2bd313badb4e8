package kvstore

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockKVStore struct {
	mock.Mock
}

func (m *mockKVStore) Get(key string) ([]byte, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockKVStore) Set(key string, value []byte) error {
	return m.Called(key, value).Error(0)
}

func (m *mockKVStore) SetIfAbsent(key string, value []byte, ttl time.Duration) (bool, error) {
	args := m.Called(key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockKVStore) Delete(key string) error {
	return m.Called(key).Error(0)
}

func (m *mockKVStore) ListKeys(page, perPage int) ([]string, error) {
	args := m.Called(page, perPage)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func TestSyncTokenStore(t *testing.T) {
	const userID = "@_dmindex_bot:example.com"
	key := "sync_token_@_dmindex_bot:example.com"

	t.Run("GetMissingToken", func(t *testing.T) {
		kv := &mockKVStore{}
		kv.On("Get", key).Return(nil, nil)

		token, err := NewSyncTokenStore(kv, userID).GetSyncToken()
		require.NoError(t, err)
		assert.Empty(t, token)
		kv.AssertExpectations(t)
	})

	t.Run("SetThenGet", func(t *testing.T) {
		kv := &mockKVStore{}
		kv.On("Set", key, []byte("s42")).Return(nil).Once()
		kv.On("Get", key).Return([]byte("s42"), nil).Once()

		store := NewSyncTokenStore(kv, userID)
		require.NoError(t, store.SetSyncToken("s42"))

		token, err := store.GetSyncToken()
		require.NoError(t, err)
		assert.Equal(t, "s42", token)
		kv.AssertExpectations(t)
	})

	t.Run("Errors", func(t *testing.T) {
		kv := &mockKVStore{}
		kv.On("Get", key).Return(nil, errors.New("db down"))
		kv.On("Set", key, mock.Anything).Return(errors.New("db down"))
		kv.On("Delete", key).Return(errors.New("db down"))

		store := NewSyncTokenStore(kv, userID)

		_, err := store.GetSyncToken()
		assert.ErrorContains(t, err, "failed to load sync token")
		assert.ErrorContains(t, store.SetSyncToken("s1"), "failed to save sync token")
		assert.ErrorContains(t, store.Clear(), "failed to clear sync token")
	})

	t.Run("Clear", func(t *testing.T) {
		kv := &mockKVStore{}
		kv.On("Delete", key).Return(nil)

		require.NoError(t, NewSyncTokenStore(kv, userID).Clear())
		kv.AssertExpectations(t)
	})
}

func TestBuildKeys(t *testing.T) {
	assert.Equal(t, "sync_token_@bot:example.com", BuildSyncTokenKey("@bot:example.com"))
	assert.Equal(t, "as_txn_1234", BuildTransactionKey("1234"))
}
