package cleaning

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// maxViolations caps the violations listed in a result; InvalidCells keeps the full count.
const maxViolations = 200

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

func (r compiledRule) check(raw string) string {
	s := strings.TrimSpace(raw)
	if r.Min != nil || r.Max != nil {
		x, ok := dataset.ParseNumber(s)
		if !ok {
			return "not numeric"
		}
		if r.Min != nil && x < *r.Min {
			return "below minimum"
		}
		if r.Max != nil && x > *r.Max {
			return "above maximum"
		}
	}
	if len(r.Allowed) > 0 {
		found := false
		for _, a := range r.Allowed {
			if strings.EqualFold(a, s) {
				found = true
				break
			}
		}
		if !found {
			return "not an allowed value"
		}
	}
	if r.re != nil && !r.re.MatchString(s) {
		return "does not match pattern"
	}
	return ""
}

// ValidateData checks each non-missing cell against its declared type and any
// rules for its column. Strict mode removes every row with an invalid cell;
// otherwise rows whose valid fraction falls below the tolerance are removed.
// Excluded columns are not checked.
func ValidateData(ds *dataset.Dataset, cfg InvalidConfig) (*dataset.Dataset, ModuleResult, error) {
	rules := make(map[string][]compiledRule)
	for _, r := range cfg.Rules {
		if !ds.HasColumn(r.Column) {
			return nil, ModuleResult{}, apperr.New(apperr.UnknownColumn, "validation rule references a column not in the dataset").WithColumn(r.Column)
		}
		cr := compiledRule{Rule: r}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, ModuleResult{}, apperr.New(apperr.InvalidParameter, "bad pattern").WithColumn(r.Column).WithValue(r.Pattern).Wrap(err)
			}
			cr.re = re
		}
		rules[r.Column] = append(rules[r.Column], cr)
	}

	var cols []dataset.Column
	for _, c := range ds.Columns() {
		if c.Role != dataset.RoleExclude {
			cols = append(cols, c)
		}
	}

	stats := &ValidationStats{StrictMode: cfg.StrictMode, Tolerance: cfg.Tolerance}
	drop := make(map[int]bool)
	for _, row := range ds.Rows() {
		checked, invalid := 0, 0
		for _, col := range cols {
			cell, _ := row.Cell(col.Name)
			if !cell.Valid {
				continue
			}
			checked++
			reason := ""
			if _, err := dataset.Coerce(cell.Raw, col.Type); err != nil {
				reason = "not a valid " + string(col.Type)
			}
			for _, r := range rules[col.Name] {
				if reason != "" {
					break
				}
				reason = r.check(cell.Raw)
			}
			if reason == "" {
				continue
			}
			invalid++
			stats.InvalidCells++
			if len(stats.Violations) < maxViolations {
				stats.Violations = append(stats.Violations, Violation{Row: row.Index, Column: col.Name, Value: cell.Raw, Reason: reason})
			}
		}
		if invalid == 0 {
			continue
		}
		if cfg.StrictMode || float64(checked-invalid)/float64(checked) < cfg.Tolerance {
			drop[row.Index] = true
		}
	}

	out, removed := dropRows(ds, drop)
	method := "tolerance"
	if cfg.StrictMode {
		method = "strict"
	}
	res := removalResult(ModuleInvalidData, method, ds, out, removed)
	res.CellsAffected = stats.InvalidCells
	res.Validation = stats
	return out, res, nil
}
