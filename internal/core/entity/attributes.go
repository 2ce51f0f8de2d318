package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Metadata is a free-form JSONB document attached to movements and action log entries.
// Numbers are decoded as json.Number so decimal values keep their precision.
type Metadata map[string]any

// Scan implements sql.Scanner for reading from PostgreSQL JSONB.
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Metadata: %T", src)
	}

	if len(source) == 0 {
		*m = nil
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(source))
	decoder.UseNumber()

	var result map[string]any
	if err := decoder.Decode(&result); err != nil {
		return fmt.Errorf("failed to decode Metadata: %w", err)
	}

	*m = result
	return nil
}

// Value implements driver.Valuer for writing to PostgreSQL JSONB.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// GetString returns string value or empty string if not found/wrong type.
func (m Metadata) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetDecimal returns the decimal stored under key, accepting numbers and strings.
func (m Metadata) GetDecimal(key string) decimal.Decimal {
	switch v := m[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case fmt.Stringer:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

// GetBool returns boolean value.
func (m Metadata) GetBool(key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// Clone creates a shallow copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	result := make(Metadata, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

// Set adds or updates a value. Returns self for chaining.
func (m *Metadata) Set(key string, value any) Metadata {
	if *m == nil {
		*m = make(Metadata)
	}
	(*m)[key] = value
	return *m
}
