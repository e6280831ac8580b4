// Package crypto provides the secp256k1 and hashing primitives used by
// the signer.
package crypto

import (
	"crypto/sha256"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/ripemd160"
)

// Hash160Size is the length of a RIPEMD-160 digest.
const Hash160Size = 20

// TagSize is the length of an integrity tag.
const TagSize = 4

// Hash160 computes RIPEMD-160(SHA-256(data)).
func Hash160(data []byte) [Hash160Size]byte {
	sha := sha256.Sum256(data)
	md := ripemd160.New()
	md.Write(sha[:])
	var out [Hash160Size]byte
	copy(out[:], md.Sum(nil))
	return out
}

// Tag returns a short BLAKE3 integrity tag over data. It detects
// corruption of stored records; it is not a MAC.
func Tag(data []byte) [TagSize]byte {
	h := blake3.Sum256(data)
	var tag [TagSize]byte
	copy(tag[:], h[:TagSize])
	return tag
}
