package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// SeedGenerator produces the seed of the random source drawn on Start.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type SeedGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 seeds, so a seed logged
// next to a response also dates it.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined seeds in order, for reproducible
// tests and golden traces. After the last seed it keeps returning it.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu    sync.Mutex
	seeds []string
	idx   int
}

// NewFixedGenerator creates a generator that returns seeds in order.
// It panics when given no seeds.
func NewFixedGenerator(seeds ...string) *FixedGenerator {
	if len(seeds) == 0 {
		panic("FixedGenerator: no seeds")
	}
	return &FixedGenerator{seeds: seeds}
}

// Generate returns the next predetermined seed.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	seed := g.seeds[g.idx]
	if g.idx < len(g.seeds)-1 {
		g.idx++
	}
	return seed
}

// newRand derives a random source from a seed string. Equal seeds give
// equal draws.
func newRand(seed string) *rand.Rand {
	sum := sha256.Sum256([]byte(seed))
	return rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(sum[:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))
}
