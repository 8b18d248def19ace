package uuid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := New()
		require.True(t, IsValid(id), id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewIdempotencyKey(t *testing.T) {
	key := NewIdempotencyKey()
	assert.True(t, IsValid(key))
	assert.NotEqual(t, New(), key)
}

func TestIsValid(t *testing.T) {
	const id = "3b1f8e2a-7c4d-4e9a-b6f0-2d8c5a1e9f47"

	assert.True(t, IsValid(id))
	assert.True(t, IsValid(strings.ToUpper(id)))

	for _, bad := range []string{
		"",
		"D-1",
		"M-101",
		strings.ReplaceAll(id, "-", ""),
		"{" + id + "}",
		"urn:uuid:" + id,
		id + "0",
		"3b1f8e2a-7c4d-1e9a-b6f0-2d8c5a1e9f47", // version 1
		"3b1f8e2a-7c4d-4e9a-c6f0-2d8c5a1e9f47", // variant nibble
		"3b1f8e2a-7c4d-4e9a-b6f0-2d8c5a1e9fzz",
	} {
		assert.False(t, IsValid(bad), "%q", bad)
		assert.ErrorContains(t, Validate(bad), "invalid UUID v4", "%q", bad)
	}
	assert.NoError(t, Validate(id))
}

func TestNewFromString(t *testing.T) {
	id := New()
	parsed, err := NewFromString(id)
	require.NoError(t, err)
	assert.Equal(t, id, parsed.String())

	_, err = NewFromString("urn:uuid:" + id)
	assert.NoError(t, err)

	_, err = NewFromString("3b1f8e2a-7c4d-1e9a-b6f0-2d8c5a1e9f47")
	assert.ErrorContains(t, err, "expected UUID v4")

	_, err = NewFromString("not-a-key")
	assert.ErrorContains(t, err, "invalid UUID")
}
