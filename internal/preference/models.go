// Package preference persists per-user UI state: saved list filters and the
// selected theme. State is stored as JSON blobs under fixed keys in a small
// key-value store, with memory and redis backends.
package preference

import (
	"time"

	"chronos/internal/condition"
	"chronos/pkg/domain"
)

// FieldType drives which editor the UI renders for a filter condition.
type FieldType string

const (
	FieldText        FieldType = "texto"
	FieldNumber      FieldType = "numero"
	FieldDate        FieldType = "fecha"
	FieldSelect      FieldType = "seleccion"
	FieldMultiSelect FieldType = "multiseleccion"
	FieldRange       FieldType = "rango"
	FieldBool        FieldType = "booleano"
)

// FilterCondition is one row of a saved filter.
type FilterCondition struct {
	ID          string             `json:"id"`
	Field       string             `json:"field"`
	Label       string             `json:"label"`
	Type        FieldType          `json:"type"`
	Operator    condition.Operator `json:"operator"`
	Value       any                `json:"value"`
	SecondValue any                `json:"second_value,omitempty"`
	Active      bool               `json:"active"`
}

// SavedFilter is a named, reusable set of list conditions. System filters are
// seeded at startup, shared with everyone and immutable.
type SavedFilter struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Module      string            `json:"module"`
	Conditions  []FilterCondition `json:"conditions"`
	UserID      domain.UserID     `json:"user_id"`
	UserName    string            `json:"user_name,omitempty"`

	Favorite bool `json:"favorite"`
	Default  bool `json:"default"`
	Shared   bool `json:"shared"`
	System   bool `json:"system"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at,omitzero"`
	UseCount   int       `json:"use_count"`
	LastUsedAt time.Time `json:"last_used_at,omitzero"`

	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// FieldOption is one choice of a select field.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldConfig describes one filterable field of a module.
type FieldConfig struct {
	Field       string               `json:"field"`
	Label       string               `json:"label"`
	Type        FieldType            `json:"type"`
	Operators   []condition.Operator `json:"operators"`
	Options     []FieldOption        `json:"options,omitempty"`
	Placeholder string               `json:"placeholder,omitempty"`
}

// Theme is the user's visual theme selection.
type Theme struct {
	Mode   string            `json:"mode"` // light, dark, auto
	Name   string            `json:"name,omitempty"`
	Colors map[string]string `json:"colors,omitempty"`
}

// DefaultTheme is used until a user saves a selection.
func DefaultTheme() Theme {
	return Theme{Mode: "dark", Name: "chronos"}
}
