// ABOUTME: Tests for signed-login verification
// ABOUTME: Covers valid logins, clock checks, replay and tampering

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-acl/internal/identity"
)

func newTestSignatureVerifier(t *testing.T, now time.Time) *SignatureVerifier {
	t.Helper()
	v := NewSignatureVerifier(5 * time.Minute)
	v.now = func() time.Time { return now }
	t.Cleanup(v.Close)
	return v
}

func newTestKey(t *testing.T) *identity.Key {
	t.Helper()
	key, err := identity.NewKey()
	require.NoError(t, err)
	return key
}

func TestSignatureVerifier_Valid(t *testing.T) {
	now := time.Now()
	v := newTestSignatureVerifier(t, now)
	key := newTestKey(t)

	got, err := v.Verify(SignLogin(key, now))
	require.NoError(t, err)
	assert.Equal(t, key.Identity(), got)
}

func TestSignatureVerifier_Replay(t *testing.T) {
	now := time.Now()
	v := newTestSignatureVerifier(t, now)
	req := SignLogin(newTestKey(t), now)

	_, err := v.Verify(req)
	require.NoError(t, err)

	_, err = v.Verify(req)
	assert.ErrorIs(t, err, ErrNonceReused)
}

func TestSignatureVerifier_Clock(t *testing.T) {
	now := time.Now()
	v := newTestSignatureVerifier(t, now)
	key := newTestKey(t)

	_, err := v.Verify(SignLogin(key, now.Add(-6*time.Minute)))
	assert.ErrorIs(t, err, ErrSignatureExpired)

	_, err = v.Verify(SignLogin(key, now.Add(2*time.Minute)))
	assert.ErrorIs(t, err, ErrFutureTimestamp)

	// small skew is tolerated
	_, err = v.Verify(SignLogin(key, now.Add(30*time.Second)))
	assert.NoError(t, err)
}

func TestSignatureVerifier_Tampered(t *testing.T) {
	now := time.Now()
	v := newTestSignatureVerifier(t, now)
	key := newTestKey(t)
	other := newTestKey(t)

	tests := []struct {
		name   string
		mutate func(*LoginRequest)
	}{
		{"different nonce", func(r *LoginRequest) { r.Nonce = "something-else" }},
		{"different timestamp", func(r *LoginRequest) { r.Timestamp-- }},
		{"someone else's key", func(r *LoginRequest) { r.PublicKey = other.PublicKeyHex() }},
		{"bad encoding", func(r *LoginRequest) { r.Signature = "%%%" }},
		{"bad key", func(r *LoginRequest) { r.PublicKey = "02deadbeef" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := SignLogin(key, now)
			tt.mutate(req)
			_, err := v.Verify(req)
			assert.Error(t, err)
		})
	}

	req := SignLogin(key, now)
	req.Nonce = " "
	_, err := v.Verify(req)
	assert.ErrorIs(t, err, ErrMissingNonce)
}

func TestSignatureVerifier_FloodCannotEvictNonce(t *testing.T) {
	now := time.Now()
	v := newTestSignatureVerifier(t, now)
	v.nonces.Close()
	v.nonces = NewNonceCache(time.Hour, 3)
	key := newTestKey(t)

	captured := SignLogin(key, now)
	_, err := v.Verify(captured)
	require.NoError(t, err)

	for range 2 {
		_, err = v.Verify(SignLogin(key, now))
		require.NoError(t, err)
	}
	_, err = v.Verify(SignLogin(key, now))
	assert.ErrorIs(t, err, ErrNonceCacheFull)

	_, err = v.Verify(captured)
	assert.ErrorIs(t, err, ErrNonceReused)
}
