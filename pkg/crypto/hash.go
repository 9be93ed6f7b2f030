// Package crypto provides the signing and hashing primitives used by the
// wallet engine.
package crypto

import (
	"github.com/zeebo/blake3"
)

// DigestSize is the length of a Digest in bytes.
const DigestSize = 32

// Digest computes the BLAKE3-256 digest used to seal wallet snapshots.
func Digest(data []byte) [DigestSize]byte {
	return blake3.Sum256(data)
}

// VerifyDigest reports whether data hashes to want.
func VerifyDigest(data []byte, want []byte) bool {
	if len(want) != DigestSize {
		return false
	}
	got := Digest(data)
	return [DigestSize]byte(want) == got
}
