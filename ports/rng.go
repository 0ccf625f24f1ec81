package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream for a specific session.
	// This ensures a simulation replays identically for the same session and seed.
	Stream(ctx context.Context, sessionID string, baseSeed int64) (*rand.Rand, error)
}
