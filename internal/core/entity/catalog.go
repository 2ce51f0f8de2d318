// Package entity provides base types shared by catalog records and movement metadata.
package entity

import (
	"strings"
	"time"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
)

// Catalog is the common header of reference records: warehouses, items, suppliers, recipes.
// Catalog rows are never physically deleted; archiving clears IsActive.
type Catalog struct {
	ID id.ID `db:"id" json:"id"`

	// Code is a human-readable identifier, unique per table.
	Code string `db:"code" json:"code"`

	Name string `db:"name" json:"name"`

	IsActive bool `db:"is_active" json:"isActive"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewCatalog creates an active catalog header with a fresh id.
func NewCatalog(code, name string) Catalog {
	now := time.Now().UTC()
	return Catalog{
		ID:        id.New(),
		Code:      strings.TrimSpace(code),
		Name:      strings.TrimSpace(name),
		IsActive:  true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the header fields every catalog requires.
func (c *Catalog) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if strings.TrimSpace(c.Code) == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	return nil
}

// Touch bumps UpdatedAt. The repository increments Version.
func (c *Catalog) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// SetVersion is called by repositories after a successful optimistic update.
func (c *Catalog) SetVersion(v int) { c.Version = v }

func (c *Catalog) Archive() {
	c.IsActive = false
	c.Touch()
}

func (c *Catalog) Activate() {
	c.IsActive = true
	c.Touch()
}

// NormalizeCode upper-cases and trims a code so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
