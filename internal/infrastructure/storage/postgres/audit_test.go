package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionDetailsCompression(t *testing.T) {
	s, err := NewActionLogStore(nil)
	require.NoError(t, err)
	defer s.Close()

	small := map[string]any{"orderId": "A-1"}
	raw, compressed, algo, err := s.encodeDetails(small)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)

	got, err := s.decodeDetails(raw, compressed, algo)
	require.NoError(t, err)
	assert.Equal(t, "A-1", got["orderId"])

	large := map[string]any{"note": strings.Repeat("flour ", 2000)}
	raw, compressed, algo, err = s.encodeDetails(large)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, raw)
	assert.Less(t, len(compressed), defaultCompressThreshold)

	got, err = s.decodeDetails(raw, compressed, algo)
	require.NoError(t, err)
	assert.Equal(t, large["note"], got["note"])
}

func TestActionDetailsEmpty(t *testing.T) {
	s, err := NewActionLogStore(nil)
	require.NoError(t, err)
	defer s.Close()

	raw, compressed, algo, err := s.encodeDetails(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Nil(t, compressed)
	assert.Equal(t, CompressionNone, algo)

	got, err := s.decodeDetails(nil, nil, CompressionNone)
	require.NoError(t, err)
	assert.Nil(t, got)
}
