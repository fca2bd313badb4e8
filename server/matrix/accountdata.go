package matrix

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// AccountDataStore caches the viewer's global account data and notifies
// subscribers when an event type changes.
type AccountDataStore struct {
	mu          sync.RWMutex
	content     map[string]json.RawMessage
	subscribers map[uuid.UUID]func(eventType string)
}

// NewAccountDataStore creates an empty store.
func NewAccountDataStore() *AccountDataStore {
	return &AccountDataStore{
		content:     make(map[string]json.RawMessage),
		subscribers: make(map[uuid.UUID]func(string)),
	}
}

// Get returns the cached content of eventType.
func (s *AccountDataStore) Get(eventType string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.content[eventType]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), content...), true
}

// Set stores content for eventType and notifies subscribers. Unchanged content
// does not notify. Returns whether the content changed.
func (s *AccountDataStore) Set(eventType string, content json.RawMessage) bool {
	s.mu.Lock()
	if existing, ok := s.content[eventType]; ok && bytes.Equal(existing, content) {
		s.mu.Unlock()
		return false
	}
	s.content[eventType] = append(json.RawMessage(nil), content...)
	handlers := make([]func(string), 0, len(s.subscribers))
	for _, handler := range s.subscribers {
		handlers = append(handlers, handler)
	}
	s.mu.Unlock()

	// Handlers run outside the lock so they may call back into the store or close their subscription.
	for _, handler := range handlers {
		handler(eventType)
	}
	return true
}

// ApplySync stores every account data event in a sync response.
func (s *AccountDataStore) ApplySync(accountData EventList) []string {
	changed := make([]string, 0)
	for _, event := range accountData.Events {
		if event.Type == "" {
			continue
		}
		if s.Set(event.Type, event.Content) {
			changed = append(changed, event.Type)
		}
	}
	return changed
}

// Subscribe registers handler to be called with the event type of every change.
func (s *AccountDataStore) Subscribe(handler func(eventType string)) *Subscription {
	id := uuid.New()

	s.mu.Lock()
	s.subscribers[id] = handler
	s.mu.Unlock()

	return &Subscription{store: s, id: id}
}

// Subscribers returns the number of active subscriptions.
func (s *AccountDataStore) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (s *AccountDataStore) unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
}

// Subscription is returned by Subscribe. Closing it more than once is harmless.
type Subscription struct {
	store *AccountDataStore
	id    uuid.UUID
	once  sync.Once
}

// Close removes the subscription.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.store.unsubscribe(sub.id)
	})
}
