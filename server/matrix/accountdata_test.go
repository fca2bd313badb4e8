package matrix

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountDataStore(t *testing.T) {
	t.Run("GetReturnsCopy", func(t *testing.T) {
		store := NewAccountDataStore()
		_, ok := store.Get("m.direct")
		assert.False(t, ok)

		store.Set("m.direct", json.RawMessage(`{"@a:x": ["!r:x"]}`))
		content, ok := store.Get("m.direct")
		require.True(t, ok)
		content[0] = '['

		again, _ := store.Get("m.direct")
		assert.JSONEq(t, `{"@a:x": ["!r:x"]}`, string(again))
	})

	t.Run("SubscribersNotifiedOnChange", func(t *testing.T) {
		store := NewAccountDataStore()
		var received []string
		sub := store.Subscribe(func(eventType string) {
			received = append(received, eventType)
		})
		defer sub.Close()

		assert.True(t, store.Set("m.direct", json.RawMessage(`{}`)))
		assert.False(t, store.Set("m.direct", json.RawMessage(`{}`)), "unchanged content does not notify")
		assert.True(t, store.Set("m.push_rules", json.RawMessage(`{}`)))

		assert.Equal(t, []string{"m.direct", "m.push_rules"}, received)
	})

	t.Run("CloseStopsNotifications", func(t *testing.T) {
		store := NewAccountDataStore()
		calls := 0
		sub := store.Subscribe(func(string) { calls++ })
		assert.Equal(t, 1, store.Subscribers())

		sub.Close()
		sub.Close()
		assert.Equal(t, 0, store.Subscribers())

		store.Set("m.direct", json.RawMessage(`{}`))
		assert.Equal(t, 0, calls)
	})

	t.Run("HandlerMayCloseItsSubscription", func(t *testing.T) {
		store := NewAccountDataStore()
		var sub *Subscription
		calls := 0
		sub = store.Subscribe(func(string) {
			calls++
			sub.Close()
		})

		store.Set("m.direct", json.RawMessage(`{"a":[]}`))
		store.Set("m.direct", json.RawMessage(`{"b":[]}`))
		assert.Equal(t, 1, calls)
	})

	t.Run("ApplySync", func(t *testing.T) {
		store := NewAccountDataStore()
		store.Set("m.direct", json.RawMessage(`{}`))

		changed := store.ApplySync(EventList{Events: []Event{
			{Type: "m.direct", Content: json.RawMessage(`{}`)},
			{Type: "", Content: json.RawMessage(`{}`)},
			{Type: "m.ignored_user_list", Content: json.RawMessage(`{"ignored_users":{}}`)},
		}})

		assert.Equal(t, []string{"m.ignored_user_list"}, changed)
	})
}
