package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapKey(t *testing.T) {
	config := map[string]any{"host": "localhost", "port": 5432}

	var host string
	require.NoError(t, ParseMapKey(config, "host", &host))
	assert.Equal(t, "localhost", host)

	// yaml decodes ports as ints; targets may be narrower.
	var port uint16
	require.NoError(t, ParseMapKey(config, "port", &port))
	assert.Equal(t, uint16(5432), port)
}

func TestParseMapKeyMissing(t *testing.T) {
	var out string
	err := ParseMapKey(map[string]any{}, "host", &out)
	assert.ErrorContains(t, err, "doesn't exist")
}

func TestParseMapKeyTypeMismatch(t *testing.T) {
	var out int
	err := ParseMapKey(map[string]any{"host": "localhost"}, "host", &out)
	assert.ErrorContains(t, err, "mismatch")
}
