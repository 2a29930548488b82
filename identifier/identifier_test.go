package identifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/binder/binder/identifier"
)

func TestNewRandom(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10000; i++ {
		id := identifier.NewRandom()
		assert.Len(t, id, identifier.Length)
		assert.True(t, identifier.Valid(id))
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	assert.False(t, identifier.Valid(""))
	assert.False(t, identifier.Valid("too-short"))
	assert.True(t, identifier.Valid(identifier.NewRandom()))
}
