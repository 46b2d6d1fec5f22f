// ABOUTME: secp256k1 keys that own identities and sign login challenges
// ABOUTME: Identity derivation is keccak-256 of the uncompressed public key

package identity

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// ErrBadSignature is returned when a signature does not verify against the
// presented public key.
var ErrBadSignature = errors.New("signature verification failed")

// Key is a secp256k1 private key.
type Key struct {
	priv *btcec.PrivateKey
}

// NewKey generates a fresh random key.
func NewKey() (*Key, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return &Key{priv: priv}, nil
}

// KeyFromHex loads a key from its 32-byte hex encoding.
func KeyFromHex(s string) (*Key, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("decoding key: want %d bytes, got %d", btcec.PrivKeyBytesLen, len(b))
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return &Key{priv: priv}, nil
}

// Hex returns the private key encoding accepted by KeyFromHex.
func (k *Key) Hex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

// PublicKeyHex returns the compressed public key in hex.
func (k *Key) PublicKeyHex() string {
	return hex.EncodeToString(k.priv.PubKey().SerializeCompressed())
}

// Identity returns the identity owned by this key.
func (k *Key) Identity() Identity {
	return FromPublicKey(k.priv.PubKey())
}

// Sign returns a base64 DER signature over keccak-256(message).
func (k *Key) Sign(message []byte) string {
	sig := ecdsa.Sign(k.priv, keccak256(message))
	return base64.StdEncoding.EncodeToString(sig.Serialize())
}

// FromPublicKey derives the identity of a public key.
func FromPublicKey(pub *btcec.PublicKey) Identity {
	var id Identity
	raw := pub.SerializeUncompressed()
	digest := keccak256(raw[1:])
	copy(id[:], digest[len(digest)-Length:])
	return id
}

// ParsePublicKey decodes a compressed or uncompressed hex public key.
func ParsePublicKey(s string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return pub, nil
}

// VerifySignature checks a signature produced by Key.Sign and returns the
// identity of the signer.
func VerifySignature(pubkeyHex string, message []byte, signature string) (Identity, error) {
	pub, err := ParsePublicKey(pubkeyHex)
	if err != nil {
		return Null, err
	}

	der, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return Null, fmt.Errorf("invalid signature encoding: %w", err)
	}

	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return Null, fmt.Errorf("invalid signature format: %w", err)
	}

	if !sig.Verify(keccak256(message), pub) {
		return Null, ErrBadSignature
	}
	return FromPublicKey(pub), nil
}
