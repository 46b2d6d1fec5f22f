// Package identity defines the account references that act as callers and as
// subjects of authorization.
//
// An Identity is a 20-byte address. The zero value, Null, is reserved: it is
// never an admin and never an authorized member.
//
// Identities are owned by secp256k1 keys. The identity of a key is the last
// 20 bytes of keccak-256 over the uncompressed public key (without the 0x04
// prefix byte), and its text form is EIP-55 checksummed hex:
//
//	key, _ := identity.NewKey()
//	id := key.Identity()          // 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
//	sig := key.Sign(msg)
//	who, err := identity.VerifySignature(key.PublicKeyHex(), msg, sig)
package identity
