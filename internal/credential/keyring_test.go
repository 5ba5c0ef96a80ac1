package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRef(t *testing.T) {
	assert.True(t, IsRef("keyring:gemini-api-key"))
	assert.False(t, IsRef("plain-secret"))
	assert.False(t, IsRef(""))
}

func TestResolvePassesPlainValuesThrough(t *testing.T) {
	tests := []string{"", "hunter2", "app specific password", "KEYRING:upper-is-not-a-ref"}

	for _, value := range tests {
		got, err := Resolve(value)
		require.NoError(t, err)
		assert.Equal(t, value, got)
	}
}

func TestResolveRejectsEmptyRef(t *testing.T) {
	_, err := Resolve("keyring:   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty keyring reference")
}
