package drafts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// internal package test so the clock can be pinned

func newClockedStore(ttl time.Duration) (*Store, *time.Time) {
	s := NewStore(ttl)
	at := time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	return s, &at
}

func TestStore_PutThenGet(t *testing.T) {
	s, _ := newClockedStore(30 * time.Minute)

	saved := s.Put("tenant-1/receipt", json.RawMessage(`{"amount":"5000"}`))
	assert.Equal(t, saved.SavedAt.Add(30*time.Minute), saved.ExpiresAt)

	got, ok := s.Get("tenant-1/receipt")
	require.True(t, ok)
	assert.JSONEq(t, `{"amount":"5000"}`, string(got.Payload))
}

func TestStore_GetExpiredDeletes(t *testing.T) {
	s, at := newClockedStore(30 * time.Minute)
	s.Put("tenant-1/receipt", json.RawMessage(`{}`))

	// still alive just before the deadline
	*at = at.Add(30*time.Minute - time.Second)
	_, ok := s.Get("tenant-1/receipt")
	require.True(t, ok)

	// gone at the deadline, and stays gone even if the clock rolls back
	*at = at.Add(time.Second)
	_, ok = s.Get("tenant-1/receipt")
	require.False(t, ok)

	*at = at.Add(-time.Hour)
	_, ok = s.Get("tenant-1/receipt")
	assert.False(t, ok)
}

func TestStore_PutReplacesAndExtends(t *testing.T) {
	s, at := newClockedStore(30 * time.Minute)
	s.Put("k", json.RawMessage(`{"v":1}`))

	*at = at.Add(20 * time.Minute)
	s.Put("k", json.RawMessage(`{"v":2}`))

	*at = at.Add(20 * time.Minute) // past the first expiry, within the second
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))
}

func TestStore_Delete(t *testing.T) {
	s, _ := newClockedStore(time.Minute)
	s.Put("k", json.RawMessage(`{}`))
	s.Delete("k")

	_, ok := s.Get("k")
	assert.False(t, ok)
	s.Delete("missing") // no-op
}

func TestStore_PayloadIsCopied(t *testing.T) {
	s, _ := newClockedStore(time.Minute)
	payload := json.RawMessage(`{"amount":"100"}`)
	s.Put("k", payload)
	payload[2] = 'X'

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"amount":"100"}`, string(got.Payload))
}
