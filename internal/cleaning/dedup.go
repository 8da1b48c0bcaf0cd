package cleaning

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// Deduplicate removes rows whose key-column similarity to an earlier kept row
// reaches the threshold. The first-encountered row of each cluster survives.
func Deduplicate(ds *dataset.Dataset, cfg DedupConfig) (*dataset.Dataset, ModuleResult, error) {
	keys := cfg.KeyColumns
	if len(keys) == 0 {
		for _, c := range ds.Columns() {
			if c.Role != dataset.RoleIdentifier && c.Role != dataset.RoleExclude {
				keys = append(keys, c.Name)
			}
		}
	}
	for _, k := range keys {
		if !ds.HasColumn(k) {
			return nil, ModuleResult{}, apperr.New(apperr.UnknownColumn, "deduplication key column not in dataset").WithColumn(k)
		}
	}
	if len(keys) == 0 {
		return nil, ModuleResult{}, apperr.New(apperr.InvalidParameter, "deduplication has no key columns")
	}

	// Normalized comparison keys per row, computed once.
	rows := ds.Rows()
	norm := make([][]string, len(rows))
	for i, r := range rows {
		vals := make([]string, len(keys))
		for j, k := range keys {
			c, _ := r.Cell(k)
			if c.Valid {
				vals[j] = normalizeKey(c.Raw, cfg.Method)
			} else {
				vals[j] = "\x00"
			}
		}
		norm[i] = vals
	}

	idx := newClusterIndex(norm, cfg.Method, cfg.Threshold)
	var members []int // per cluster, in creation order
	drop := make(map[int]bool)
	for i := range rows {
		if id := idx.find(i); id >= 0 {
			members[id]++
			drop[rows[i].Index] = true
			continue
		}
		idx.add(i)
		members = append(members, 1)
	}

	out, removed := dropRows(ds, drop)
	res := removalResult(ModuleDeduplication, string(cfg.Method), ds, out, removed)
	dup := 0
	for _, n := range members {
		if n > 1 {
			dup++
		}
	}
	res.Dedup = &DedupStats{
		DuplicatesFound: len(removed),
		Clusters:        dup,
		KeyColumns:      keys,
		Threshold:       cfg.Threshold,
	}
	return out, res, nil
}

// clusterIndex finds the earliest cluster whose representative is similar
// enough to a row. Exact and phonetic keys, and fuzzy keys at threshold 1, are
// split into blocks so that any match agrees on at least one whole block.
// Fuzzy representatives are grouped by field lengths, and a group is skipped
// when the length difference alone rules out the threshold.
type clusterIndex struct {
	norm      [][]string
	method    DedupMethod
	threshold float64
	reps      []int // cluster id -> row position of its representative

	blocks  [][2]int
	byBlock map[string][]int

	lens   [][]int
	groups map[string]*lengthGroup
	order  []*lengthGroup
}

type lengthGroup struct {
	lens []int
	ids  []int
}

func newClusterIndex(norm [][]string, method DedupMethod, threshold float64) *clusterIndex {
	x := &clusterIndex{norm: norm, method: method, threshold: threshold}
	fields := 0
	if len(norm) > 0 {
		fields = len(norm[0])
	}
	if method != DedupFuzzy || threshold >= 1.0 {
		// a match needs at least need equal fields, so at most fields-need
		// differ and one of fields-need+1 blocks is untouched
		need := 0
		for float64(need)/float64(fields) < threshold {
			need++
		}
		parts := fields - need + 1
		if need == 0 || parts > fields {
			parts = 1
		}
		for p := 0; p < parts; p++ {
			x.blocks = append(x.blocks, [2]int{p * fields / parts, (p + 1) * fields / parts})
		}
		x.byBlock = make(map[string][]int)
		return x
	}
	x.lens = make([][]int, len(norm))
	for i, vals := range norm {
		x.lens[i] = make([]int, len(vals))
		for j, v := range vals {
			x.lens[i][j] = utf8.RuneCountInString(v)
		}
	}
	x.groups = make(map[string]*lengthGroup)
	return x
}

func (x *clusterIndex) blockKey(i, p int) string {
	b := x.blocks[p]
	return strconv.Itoa(p) + "\x1e" + strings.Join(x.norm[i][b[0]:b[1]], "\x1f")
}

func lengthKey(lens []int) string {
	parts := make([]string, len(lens))
	for j, n := range lens {
		parts[j] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// find returns the id of the first cluster the row at position i joins, or -1.
func (x *clusterIndex) find(i int) int {
	if x.byBlock != nil {
		var cand []int
		for p := range x.blocks {
			cand = append(cand, x.byBlock[x.blockKey(i, p)]...)
		}
		sort.Ints(cand)
		for k, id := range cand {
			if k > 0 && cand[k-1] == id {
				continue
			}
			if similarAtLeast(x.norm[x.reps[id]], x.norm[i], x.method, x.threshold) {
				return id
			}
		}
		return -1
	}
	best := -1
	for _, g := range x.order {
		if lengthBound(g.lens, x.lens[i]) < x.threshold-1e-9 {
			continue
		}
		for _, id := range g.ids {
			if best >= 0 && id > best {
				break
			}
			if similarAtLeast(x.norm[x.reps[id]], x.norm[i], x.method, x.threshold) {
				best = id
				break
			}
		}
	}
	return best
}

// add makes the row at position i the representative of a new cluster.
func (x *clusterIndex) add(i int) {
	id := len(x.reps)
	x.reps = append(x.reps, i)
	if x.byBlock != nil {
		for p := range x.blocks {
			k := x.blockKey(i, p)
			x.byBlock[k] = append(x.byBlock[k], id)
		}
		return
	}
	k := lengthKey(x.lens[i])
	g, ok := x.groups[k]
	if !ok {
		g = &lengthGroup{lens: x.lens[i]}
		x.groups[k] = g
		x.order = append(x.order, g)
	}
	g.ids = append(g.ids, id)
}

// lengthBound is an upper bound on the fuzzy similarity of two keys with the
// given field lengths: an edit distance is never below the length difference.
func lengthBound(a, b []int) float64 {
	if len(a) == 0 {
		return 0
	}
	var total float64
	for j := range a {
		longest := max(a[j], b[j])
		if longest == 0 {
			total++
			continue
		}
		diff := a[j] - b[j]
		if diff < 0 {
			diff = -diff
		}
		total += 1 - float64(diff)/float64(longest)
	}
	return total / float64(len(a))
}

func normalizeKey(raw string, method DedupMethod) string {
	s := strings.TrimSpace(raw)
	switch method {
	case DedupFuzzy:
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	case DedupPhonetic:
		if _, ok := dataset.ParseNumber(s); ok {
			return s
		}
		var codes []string
		for _, w := range strings.Fields(s) {
			if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
				codes = append(codes, strings.ToLower(w))
				continue
			}
			codes = append(codes, soundex(w))
		}
		return strings.Join(codes, " ")
	default:
		return s
	}
}

// similarity averages per-field similarity over the key columns.
func similarity(a, b []string, method DedupMethod) float64 {
	if len(a) == 0 {
		return 0
	}
	var total float64
	for j := range a {
		total += fieldSimilarity(a[j], b[j], method)
	}
	return total / float64(len(a))
}

// similarAtLeast is similarity(a, b) >= threshold with an early exit once the
// remaining fields can no longer lift the average over the threshold.
func similarAtLeast(a, b []string, method DedupMethod, threshold float64) bool {
	n := float64(len(a))
	if n == 0 {
		return false
	}
	var total float64
	for j := range a {
		total += fieldSimilarity(a[j], b[j], method)
		if (total+float64(len(a)-j-1))/n < threshold {
			return false
		}
	}
	return total/n >= threshold
}

func fieldSimilarity(a, b string, method DedupMethod) float64 {
	if a == b {
		return 1
	}
	if method != DedupFuzzy || a == "\x00" || b == "\x00" {
		return 0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// soundex computes the American Soundex code of a word ("Robert" -> "R163").
func soundex(word string) string {
	var letters []rune
	for _, r := range strings.ToUpper(word) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}
	code := func(r rune) byte {
		switch r {
		case 'B', 'F', 'P', 'V':
			return '1'
		case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
			return '2'
		case 'D', 'T':
			return '3'
		case 'L':
			return '4'
		case 'M', 'N':
			return '5'
		case 'R':
			return '6'
		case 'H', 'W':
			return 'h'
		case 'A', 'E', 'I', 'O', 'U', 'Y':
			return 'v'
		}
		return byte(r)
	}
	out := []byte{byte(letters[0])}
	last := code(letters[0])
	for _, r := range letters[1:] {
		c := code(r)
		switch {
		case c == 'h':
			// H and W do not separate equal codes
			continue
		case c == 'v':
			last = c
			continue
		case c != last:
			out = append(out, c)
		}
		last = c
		if len(out) == 4 {
			break
		}
	}
	for len(out) < 4 {
		out = append(out, '0')
	}
	return string(out)
}
