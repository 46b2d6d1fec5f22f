// ABOUTME: Tests for the nonce replay cache
// ABOUTME: Covers spend, expiry, capacity and close

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNonceCache_Spend(t *testing.T) {
	c := NewNonceCache(time.Minute, 10)
	defer c.Close()

	assert.NoError(t, c.Spend("a"))
	assert.ErrorIs(t, c.Spend("a"), ErrNonceReused)
	assert.NoError(t, c.Spend("b"))
	assert.Equal(t, 2, c.Len())
}

func TestNonceCache_Expiry(t *testing.T) {
	c := NewNonceCache(20*time.Millisecond, 10)
	defer c.Close()

	assert.NoError(t, c.Spend("a"))
	time.Sleep(40 * time.Millisecond)
	assert.NoError(t, c.Spend("a"), "expired nonce may be spent again")

	time.Sleep(40 * time.Millisecond)
	c.expire()
	assert.Zero(t, c.Len())
}

func TestNonceCache_FullKeepsLiveNonces(t *testing.T) {
	c := NewNonceCache(time.Minute, 2)
	defer c.Close()

	assert.NoError(t, c.Spend("a"))
	assert.NoError(t, c.Spend("b"))
	assert.ErrorIs(t, c.Spend("c"), ErrNonceCacheFull)

	// flooding must not push a live nonce out
	assert.ErrorIs(t, c.Spend("a"), ErrNonceReused)
	assert.Equal(t, 2, c.Len())
}

func TestNonceCache_FullReclaimsExpired(t *testing.T) {
	c := NewNonceCache(20*time.Millisecond, 2)
	defer c.Close()

	assert.NoError(t, c.Spend("a"))
	assert.NoError(t, c.Spend("b"))
	time.Sleep(40 * time.Millisecond)

	assert.NoError(t, c.Spend("c"))
	assert.Equal(t, 1, c.Len())
}

func TestNonceCache_CloseTwice(t *testing.T) {
	c := NewNonceCache(time.Minute, 2)
	c.Close()
	c.Close()
}
