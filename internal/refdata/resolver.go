package refdata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Entry is one key and every name that resolves to it.
type Entry struct {
	Key   int
	Names []string
}

// Resolver maps free-text organizational names to surrogate keys. Names
// that match nothing resolve to the fallback key; callers decide whether to
// report that.
type Resolver struct {
	exact    map[string]int
	folded   map[string]int
	fallback int
}

// NewResolver builds a Resolver. Earlier entries win on folded collisions.
func NewResolver(entries []Entry, fallback int) *Resolver {
	r := &Resolver{
		exact:    make(map[string]int),
		folded:   make(map[string]int),
		fallback: fallback,
	}
	for _, e := range entries {
		for _, n := range e.Names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			if _, ok := r.exact[n]; !ok {
				r.exact[n] = e.Key
			}
			f := Fold(n)
			if _, ok := r.folded[f]; !ok {
				r.folded[f] = e.Key
			}
		}
	}
	return r
}

// Resolve returns the key for name and whether it matched. Exact match is
// tried first, then a case- and accent-insensitive match.
func (r *Resolver) Resolve(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.fallback, false
	}
	if k, ok := r.exact[name]; ok {
		return k, true
	}
	if k, ok := r.folded[Fold(name)]; ok {
		return k, true
	}
	return r.fallback, false
}

// Fallback returns the key used for unmatched names.
func (r *Resolver) Fallback() int {
	return r.fallback
}

// Fold lowercases, strips diacritics and collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
