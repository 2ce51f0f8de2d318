package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/apperror"
)

func TestMetadataRoundTripKeepsPrecision(t *testing.T) {
	var m Metadata
	m.Set("shortage", "1.2345")
	m.Set("orderId", "o-1")

	raw, err := m.Value()
	require.NoError(t, err)

	var back Metadata
	require.NoError(t, back.Scan(raw))
	assert.Equal(t, "1.2345", back.GetDecimal("shortage").String())
	assert.Equal(t, "o-1", back.GetString("orderId"))

	require.NoError(t, back.Scan([]byte(`{"requested": 0.30000000000000004}`)))
	_, isNumber := back["requested"].(json.Number)
	assert.True(t, isNumber)
}

func TestMetadataNilValueIsEmptyObject(t *testing.T) {
	var m Metadata
	raw, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), raw)
}

func TestCatalogValidate(t *testing.T) {
	c := NewCatalog(" main ", "Main store")
	assert.True(t, c.IsActive)
	assert.Equal(t, "main", c.Code)
	assert.NoError(t, c.Validate())

	c.Name = "  "
	err := c.Validate()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
