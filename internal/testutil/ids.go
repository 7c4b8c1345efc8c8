package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator generates predictable run ids for tests.
//
// Ids are the prefix followed by a zero-padded counter:
//
//	run-000001, run-000002, ...
//
// Two generators with the same prefix produce the same ids in the same
// order, so stored runs can be compared against golden output.
//
// Implements store.IDGenerator.
type FixedIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedIDGenerator creates a generator. An empty prefix means "run".
func NewFixedIDGenerator(prefix string) *FixedIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &FixedIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}
