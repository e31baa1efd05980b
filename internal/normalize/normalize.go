// Package normalize cleans spreadsheet cells before they reach the catalog.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultSentinels are the "no data" phrases used when a profile does not
// list its own.
var DefaultSentinels = []string{"nan", "no registra", "sin definir", "", "sin información"}

// Cleaner maps raw cells to trimmed values, treating sentinel phrases as
// absent.
type Cleaner struct {
	sentinels map[string]struct{}
}

// NewCleaner builds a Cleaner. Sentinels match case-insensitively after
// trimming.
func NewCleaner(sentinels []string) *Cleaner {
	if sentinels == nil {
		sentinels = DefaultSentinels
	}
	c := &Cleaner{sentinels: make(map[string]struct{}, len(sentinels)+1)}
	c.sentinels[""] = struct{}{}
	for _, s := range sentinels {
		c.sentinels[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return c
}

// Clean returns the trimmed value and true, or "" and false when the cell is
// absent or a sentinel.
func (c *Cleaner) Clean(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if _, ok := c.sentinels[strings.ToLower(v)]; ok {
		return "", false
	}
	return v, true
}

// Ptr is Clean for nullable columns.
func (c *Cleaner) Ptr(raw string) *string {
	v, ok := c.Clean(raw)
	if !ok {
		return nil
	}
	return &v
}

// SplitCodes turns "{R001,R002}" or "R001; R002" into ordered codes.
func SplitCodes(raw string) []string {
	r := strings.NewReplacer("{", "", "}", "", ",", ";")
	parts := strings.Split(r.Replace(raw), ";")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

// groupedInt matches whole numbers with thousands separators ("1.200",
// "12,500", "1.000.000"). Mixing both separators is rejected by Volume.
var groupedInt = regexp.MustCompile(`^\d{1,3}([.,]\d{3})+$`)

// Volume parses a monthly volume cell. Absent values yield (0, true).
// Thousands separators are accepted ("1.200" and "1,200" are 1200); a single
// decimal part is accepted only when it is zero ("12.0", "12,0"). Anything
// else, fractional counts included, yields (0, false).
func Volume(raw string) (int64, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, true
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	if groupedInt.MatchString(v) {
		if strings.Contains(v, ".") && strings.Contains(v, ",") {
			return 0, false
		}
		n, err := strconv.ParseInt(strings.NewReplacer(".", "", ",", "").Replace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// OptionalInt parses an integer column, returning nil for anything that is
// not a whole number.
func OptionalInt(raw string) *int64 {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int64(f)
	return &n
}
