package dataset

import "strings"

// ColumnSpec is the schema-configuration output for one column.
type ColumnSpec struct {
	Type ColumnType `json:"type" yaml:"type" mapstructure:"type"`
	Role Role       `json:"role" yaml:"role" mapstructure:"role"`
}

// SuggestSchema guesses a type and role per column from its name, the way the
// upload wizard pre-fills the schema form. The caller is expected to review it.
func SuggestSchema(names []string) map[string]ColumnSpec {
	out := make(map[string]ColumnSpec, len(names))
	for _, name := range names {
		out[name] = suggestColumn(name)
	}
	return out
}

func suggestColumn(name string) ColumnSpec {
	lower := strings.ToLower(strings.TrimSpace(name))

	typ := TypeText
	switch {
	case strings.Contains(lower, "completion_time") || strings.Contains(lower, "duration"):
		typ = TypeDuration
	case strings.Contains(lower, "age") || strings.Contains(lower, "score") || strings.Contains(lower, "time"):
		typ = TypeNumber
	case strings.Contains(lower, "date"):
		typ = TypeDate
	case strings.Contains(lower, "satisfaction") || strings.Contains(lower, "rating"):
		typ = TypeLikert
	}

	role := RoleResponse
	switch {
	case lower == "id" || strings.Contains(lower, "identifier") || strings.HasSuffix(lower, "_id"):
		role = RoleIdentifier
	case strings.Contains(lower, "age") || strings.Contains(lower, "gender") || strings.Contains(lower, "location"):
		role = RoleDemographic
	case strings.Contains(lower, "date") || strings.Contains(lower, "time") || strings.Contains(lower, "duration"):
		role = RoleMetadata
	}
	return ColumnSpec{Type: typ, Role: role}
}
