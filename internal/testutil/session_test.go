package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSessionGenerator_Sequence(t *testing.T) {
	gen := NewFixedSessionGenerator("run")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Equal(t, "run-3", gen.Generate())
}

func TestFixedSessionGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewFixedSessionGenerator("")
	assert.Equal(t, "test-session-1", gen.Generate())
}

func TestFixedSessionGenerator_SameSequenceTwice(t *testing.T) {
	a := NewFixedSessionGenerator("s")
	b := NewFixedSessionGenerator("s")
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}
