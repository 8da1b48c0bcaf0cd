package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
)

// Coerce converts a raw value to the Go representation of the declared type:
// float64 for number/likert/duration (seconds), time.Time for date, bool for
// boolean and string for text/categorical.
func Coerce(raw string, t ColumnType) (any, error) {
	switch t {
	case TypeNumber, TypeLikert:
		if x, ok := ParseNumber(raw); ok {
			return x, nil
		}
		return nil, fmt.Errorf("not a number")
	case TypeDuration:
		if x, ok := ParseDurationSeconds(raw); ok {
			return x, nil
		}
		return nil, fmt.Errorf("not a duration")
	case TypeDate:
		if ts, ok := ParseTime(raw); ok {
			return ts, nil
		}
		return nil, fmt.Errorf("not a date")
	case TypeBoolean:
		return ParseBool(raw)
	default:
		return strings.TrimSpace(raw), nil
	}
}

func mismatch(col Column, raw string, err error) error {
	return apperr.New(apperr.TypeMismatch, "cannot coerce to %s", col.Type).
		WithColumn(col.Name).WithValue(raw).Wrap(err)
}

// ParseNumber parses a numeric cell, auto-detecting the decimal separator and
// stripping thousands separators and a trailing percent sign.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0 && cpos > dpos:
		dec = ','
	case cpos >= 0 && dpos < 0 && strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3:
		// "3,5" is a decimal comma; "1,250" stays a thousands separator.
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	if !plainDecimal(raw) {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// plainDecimal reports whether s is an optionally signed decimal with an
// optional e-exponent. Hex floats, underscores and inf/nan spellings fail.
func plainDecimal(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

// ParseDurationSeconds accepts plain seconds, Go durations ("4m5s") and
// clock notation ("mm:ss", "hh:mm:ss").
func ParseDurationSeconds(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if x, ok := ParseNumber(raw); ok {
		return x, true
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d.Seconds(), true
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !plainDecimal(p) {
			return 0, false
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime tries the common date layouts seen in survey exports.
func ParseTime(s string) (time.Time, bool) {
	raw := strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBool accepts true/false, yes/no, y/n, t/f and 1/0.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, fmt.Errorf("cannot parse %q as boolean", s)
	}
}
