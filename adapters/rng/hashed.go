package rng

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// HashedRNG derives independent deterministic rand streams by hashing a
// stream name into the seed. The same (name, seed) pair always produces the
// same sequence, so simulations replay exactly.
type HashedRNG struct{}

// NewHashedRNG creates a new deterministic RNG adapter.
func NewHashedRNG() *HashedRNG {
	return &HashedRNG{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (h *HashedRNG) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(mixSeed(name, seed))), nil
}

// Stream creates a deterministic RNG stream for a specific session
func (h *HashedRNG) Stream(ctx context.Context, sessionID string, baseSeed int64) (*rand.Rand, error) {
	return h.SeededStream(ctx, "session:"+sessionID, baseSeed)
}

func mixSeed(name string, seed int64) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(name))
	return int64(hasher.Sum64()) ^ seed
}
