package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// LowCompleteness is the answered share below which a response column is flagged.
const LowCompleteness = 0.8

var roleOrder = []dataset.Role{
	dataset.RoleResponse,
	dataset.RoleDemographic,
	dataset.RoleIdentifier,
	dataset.RoleMetadata,
	dataset.RoleWeight,
	dataset.RoleExclude,
}

// Markdown renders the profile for the CLI or a wizard summary pane. Columns
// are listed under their survey role, response columns first.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[SURVEY SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", r.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\n", r.Rows)
	fmt.Fprintf(&b, "Columns: %d\n", len(r.Cols))

	byRole := make(map[dataset.Role][]ColumnSummary)
	for _, c := range r.Cols {
		byRole[c.Role] = append(byRole[c.Role], c)
	}
	if n := len(byRole[dataset.RoleResponse]); n > 0 && r.Rows > 0 {
		fmt.Fprintf(&b, "Complete responses: %d of %d (%.1f%%)\n", r.CompleteResponses, r.Rows, pct(r.CompleteResponses, r.Rows))
	}

	b.WriteString("\n[ROLES]\n")
	for _, role := range roleOrder {
		cols := byRole[role]
		if len(cols) == 0 {
			continue
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = safeName(c.Name)
		}
		fmt.Fprintf(&b, "- %s: %d (%s)\n", role, len(cols), strings.Join(names, ", "))
	}

	if resp := byRole[dataset.RoleResponse]; len(resp) > 0 {
		b.WriteString("\n[RESPONSE COMPLETENESS]\n")
		for _, c := range resp {
			line := fmt.Sprintf("- %s: %.1f%% answered (%d missing)", safeName(c.Name), c.Completeness()*100, c.Missing)
			if c.NonNull+c.Missing > 0 && c.Completeness() < LowCompleteness {
				line += " ⚠ low completeness"
			}
			b.WriteString(line + "\n")
		}
	}

	for _, role := range roleOrder {
		cols := byRole[role]
		if len(cols) == 0 || role == dataset.RoleExclude {
			continue
		}
		fmt.Fprintf(&b, "\n[%s COLUMNS]\n", strings.ToUpper(string(role)))
		for _, c := range cols {
			writeColumn(&b, c)
		}
	}

	if len(r.Groups) > 0 {
		b.WriteString("\n[BY GROUP]\n")
		for _, g := range r.Groups {
			fmt.Fprintf(&b, "- %s (n=%d)", g.Key, g.Size)
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for i, k := range keys {
				sep := ": "
				if i > 0 {
					sep = "; "
				}
				fmt.Fprintf(&b, "%s%s avg %.3g", sep, k, g.Metrics[k].Mean)
			}
			b.WriteString("\n")
		}
	}

	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[STRONGEST CORRELATIONS]\n")
		for _, p := range topPairs(r.Corr, 10) {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", p.a, p.b, p.r)
		}
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[FIRST RESPONSES]\n")
		header := make([]string, len(r.Cols))
		rule := make([]string, len(r.Cols))
		for i, c := range r.Cols {
			header[i] = safeName(c.Name)
			rule[i] = "---"
		}
		b.WriteString("| " + strings.Join(header, " | ") + " |\n")
		b.WriteString("| " + strings.Join(rule, " | ") + " |\n")
		for _, row := range r.Samples {
			vals := make([]string, len(r.Cols))
			for i := range vals {
				if i < len(row) {
					vals[i] = clip(safeVal(row[i]), 80)
				}
			}
			b.WriteString("| " + strings.Join(vals, " | ") + " |\n")
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func writeColumn(b *strings.Builder, c ColumnSummary) {
	fmt.Fprintf(b, "- %s (%s): %s, %d answered", safeName(c.Name), c.Type, c.Kind, c.NonNull)
	switch c.Kind {
	case "numeric":
		fmt.Fprintf(b, " | range %.4g..%.4g, mean %.4g, sd %.4g", c.Min, c.Max, c.Mean, c.Std)
		if c.OutliersCount > 0 {
			fmt.Fprintf(b, " | %d robust outlier(s), max |z| %.2f", c.OutliersCount, c.OutliersMaxAbsZ)
		}
	case "categorical":
		if len(c.TopValues) > 0 {
			parts := make([]string, len(c.TopValues))
			for i, kv := range c.TopValues {
				parts[i] = fmt.Sprintf("%s=%d", safeVal(kv.Value), kv.Count)
			}
			fmt.Fprintf(b, " | %s", strings.Join(parts, ", "))
			if c.Unique > len(c.TopValues) {
				fmt.Fprintf(b, " (+%d more)", c.Unique-len(c.TopValues))
			}
		}
	case "text":
		if len(c.ExampleTexts) > 0 {
			fmt.Fprintf(b, " | e.g. %q", clip(safeVal(c.ExampleTexts[0]), 60))
		}
	}
	b.WriteString("\n")
}

type corrPair struct {
	a, b string
	r    float64
}

// topPairs returns the n column pairs with the largest |r|.
func topPairs(m *CorrMatrix, n int) []corrPair {
	var pairs []corrPair
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			pairs = append(pairs, corrPair{a: m.Columns[i], b: m.Columns[j], r: m.Values[i][j]})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].r) > math.Abs(pairs[j].r)
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
