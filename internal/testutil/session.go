package testutil

import (
	"fmt"
	"sync"
)

// FixedSessionGenerator hands out predictable session IDs.
//
// With a prefix it returns prefix-1, prefix-2, ...; this keeps recorded
// history byte-identical across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedSessionGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedSessionGenerator creates a generator. An empty prefix means
// "test-session".
func NewFixedSessionGenerator(prefix string) *FixedSessionGenerator {
	if prefix == "" {
		prefix = "test-session"
	}
	return &FixedSessionGenerator{prefix: prefix}
}

// Generate returns the next session ID.
func (g *FixedSessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
