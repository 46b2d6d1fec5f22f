// ABOUTME: Account identity used as caller and as subject of authorization
// ABOUTME: 20-byte addresses rendered as EIP-55 checksummed hex

package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Length is the size of an identity in bytes.
const Length = 20

// Identity is an opaque account reference. Two identities are the same
// account exactly when their bytes are equal.
type Identity [Length]byte

// Null is the distinguished zero identity. It is never a valid admin or
// authorized member.
var Null Identity

// Parse errors
var (
	ErrInvalidHex      = errors.New("invalid identity hex")
	ErrInvalidLength   = errors.New("invalid identity length")
	ErrInvalidChecksum = errors.New("identity checksum mismatch")
)

// Parse decodes a hex identity with or without the 0x prefix. All-lowercase
// and all-uppercase input is accepted as is; mixed-case input must carry a
// valid EIP-55 checksum.
func Parse(s string) (Identity, error) {
	var id Identity

	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != Length*2 {
		return id, fmt.Errorf("%w: %q has %d hex digits", ErrInvalidLength, s, len(raw))
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	copy(id[:], b)

	if isMixedCase(raw) && checksum(strings.ToLower(raw)) != raw {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidChecksum, s)
	}
	return id, nil
}

// MustParse is Parse for constants and tests. It panics on error.
func MustParse(s string) Identity {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// FromBytes copies a 20-byte slice into an Identity.
func FromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != Length {
		return id, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsNull reports whether id is the null identity.
func (id Identity) IsNull() bool {
	return id == Null
}

// Hex returns the lowercase 0x-prefixed encoding. This is the form used as a
// storage key.
func (id Identity) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// String returns the EIP-55 checksummed encoding.
func (id Identity) String() string {
	return "0x" + checksum(hex.EncodeToString(id[:]))
}

// Short returns an abbreviated form for log lines and terminal output.
func (id Identity) Short() string {
	s := id.String()
	return s[:6] + "…" + s[len(s)-4:]
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// checksum applies EIP-55 casing to a lowercase hex address without prefix.
func checksum(lower string) string {
	digest := keccak256([]byte(lower))
	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
