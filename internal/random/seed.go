// Package random generates seeds for the deterministic game RNGs.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed reads a seed from crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ResolveSeed returns configured when it is non-zero, otherwise a fresh seed.
func ResolveSeed(configured int64) (int64, error) {
	if configured != 0 {
		return configured, nil
	}
	return NewSeed()
}

// NewRand returns a math/rand source seeded with seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
