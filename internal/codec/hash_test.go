package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomain_Separation(t *testing.T) {
	data := []byte(`{"a":1}`)

	a := hashWithDomain(DomainAction, data)
	s := hashWithDomain(DomainState, data)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, s)
	assert.Equal(t, a, hashWithDomain(DomainAction, data))
}

func TestActionID(t *testing.T) {
	env := Envelope{Type: "increase", Payload: json.RawMessage(`{}`)}

	id1, err := ActionID("s1", 1, env)
	require.NoError(t, err)
	again, err := ActionID("s1", 1, env)
	require.NoError(t, err)
	assert.Equal(t, id1, again)

	id2, err := ActionID("s1", 2, env)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2, "position is part of identity")

	other, err := ActionID("s2", 1, env)
	require.NoError(t, err)
	assert.NotEqual(t, id1, other, "session is part of identity")
}

func TestStateHash_KeyOrderIndependent(t *testing.T) {
	h1, err := StateHash(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := StateHash(json.RawMessage(`{"b":2,"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
