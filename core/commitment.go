package core

import (
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// DigestKind names the collision-resistant 256-bit digest used for sealed
// bid commitments. The choice is part of the on-the-wire contract.
type DigestKind int

const (
	// DigestKeccak256 is the default, kept for legacy wire compatibility.
	DigestKeccak256 DigestKind = iota
	// DigestSHA256 is the alternative configured scheme.
	DigestSHA256
)

// String returns the configuration name of the digest.
func (d DigestKind) String() string {
	if d == DigestSHA256 {
		return "sha256"
	}
	return "keccak256"
}

// ParseDigestKind maps a configuration name to a digest kind.
func ParseDigestKind(s string) (DigestKind, bool) {
	switch s {
	case "keccak256", "":
		return DigestKeccak256, true
	case "sha256":
		return DigestSHA256, true
	}
	return 0, false
}

// ComputeCommitment hashes the packed reveal encoding: the amount as an
// unsigned big-endian 32-byte integer concatenated with the 32-byte salt.
// No other encoding is accepted.
func ComputeCommitment(d DigestKind, amount *big.Int, salt [32]byte) [32]byte {
	var packed [64]byte
	amount.FillBytes(packed[:32])
	copy(packed[32:], salt[:])

	var out [32]byte
	if d == DigestSHA256 {
		return sha256.Sum256(packed[:])
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(packed[:])
	copy(out[:], h.Sum(nil))
	return out
}
