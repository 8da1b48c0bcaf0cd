package dataset

import "strings"

// ColumnType is the declared semantic type of a column.
type ColumnType string

const (
	TypeText        ColumnType = "text"
	TypeNumber      ColumnType = "number"
	TypeDate        ColumnType = "date"
	TypeBoolean     ColumnType = "boolean"
	TypeCategorical ColumnType = "categorical"
	TypeLikert      ColumnType = "likert"
	TypeDuration    ColumnType = "duration"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeBoolean, TypeCategorical, TypeLikert, TypeDuration:
		return true
	}
	return false
}

// Numeric reports whether cells of this type coerce to float64.
func (t ColumnType) Numeric() bool {
	return t == TypeNumber || t == TypeLikert || t == TypeDuration
}

// Role is the analytical role assigned to a column during schema configuration.
type Role string

const (
	RoleIdentifier  Role = "identifier"
	RoleDemographic Role = "demographic"
	RoleResponse    Role = "response"
	RoleMetadata    Role = "metadata"
	RoleWeight      Role = "weight"
	RoleExclude     Role = "exclude"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleIdentifier, RoleDemographic, RoleResponse, RoleMetadata, RoleWeight, RoleExclude:
		return true
	}
	return false
}

// Column describes one dataset column.
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
	Role Role       `json:"role" yaml:"role"`
}

// Cell is a single raw value. Valid=false marks an explicit missing cell.
type Cell struct {
	Raw   string
	Valid bool
}

// Null is the explicit missing cell.
func Null() Cell { return Cell{} }

// Text wraps a raw value, mapping missing-value tokens to Null.
func Text(raw string) Cell {
	if IsMissingToken(raw) {
		return Null()
	}
	return Cell{Raw: raw, Valid: true}
}

// String renders the cell for export; missing cells render as "".
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return c.Raw
}

var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
}

// IsMissingToken reports whether raw denotes a missing value.
func IsMissingToken(raw string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}
