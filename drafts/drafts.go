/*
Package drafts holds unsubmitted form state server-side for a bounded time.

PURPOSE:
  Long intake forms survive navigation by saving a draft under an explicit
  key (tenant + form name). Each draft carries an expiry timestamp that is
  checked on read: an expired draft is deleted and reported as absent, so
  stale form state can never leak back into a form. Drafts are advisory
  data; nothing here touches the ledger.
*/
package drafts

import (
	"encoding/json"
	"sync"
	"time"
)

// Draft is one saved form state.
type Draft struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	SavedAt   time.Time       `json:"saved_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Store keeps drafts in memory with a fixed TTL.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]Draft
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		entries: make(map[string]Draft),
		now:     time.Now,
	}
}

// Put saves or replaces the draft under key and returns it with its expiry.
func (s *Store) Put(key string, payload json.RawMessage) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	d := Draft{
		Key:       key,
		Payload:   append(json.RawMessage(nil), payload...),
		SavedAt:   now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.entries[key] = d
	return d
}

// Get returns the draft under key if it has not expired. An expired draft
// is removed on this read.
func (s *Store) Get(key string) (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.entries[key]
	if !ok {
		return Draft{}, false
	}
	if !s.now().Before(d.ExpiresAt) {
		delete(s.entries, key)
		return Draft{}, false
	}
	return d, true
}

// Delete discards the draft under key, if any.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
