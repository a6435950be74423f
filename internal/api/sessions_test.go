package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStore(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessionStore(time.Hour)
	s.now = func() time.Time { return now }

	tok, exp := s.Create("aff-1")
	assert.NotEmpty(t, tok)
	assert.Equal(t, now.Add(time.Hour), exp)

	id, ok := s.Lookup(tok)
	assert.True(t, ok)
	assert.Equal(t, "aff-1", id)

	other, _ := s.Create("aff-2")
	assert.NotEqual(t, tok, other)

	_, ok = s.Lookup("unknown")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	_, ok = s.Lookup(tok)
	assert.False(t, ok, "expired at ttl")
	assert.Equal(t, 1, s.Len())

	// Creating a session sweeps the expired ones.
	s.Create("aff-3")
	assert.Equal(t, 1, s.Len())

	s.Delete(other)
	_, ok = s.Lookup(other)
	assert.False(t, ok)
}

func TestSessionStore_DefaultTTL(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, NewSessionStore(0).ttl)
}
