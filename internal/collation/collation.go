// Package collation implements the collation registry (spec §4.F): a set
// of named text comparators that can be installed on a SQLite connection.
package collation

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator mirrors the signature mattn/go-sqlite3's
// SQLiteConn.RegisterCollation expects, so a Registry entry installs
// directly with no adapter.
type Comparator func(a, b string) int

// Registry holds named comparators: the built-ins plus any custom ones an
// application registers. Names are case-folded (spec §3 "Collation").
type Registry struct {
	mu     sync.RWMutex
	custom map[string]Comparator
}

// NewRegistry returns a Registry carrying only the built-in names.
func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]Comparator)}
}

// BuiltinNames are the collations installed on every connection at open
// (spec §3, §4.F).
var BuiltinNames = []string{"binary", "string", "caseInsensitive", "localized", "localizedCaseInsensitive"}

var (
	collCaseSensitive        = collate.New(language.Und)
	collCaseInsensitive      = collate.New(language.Und, collate.IgnoreCase)
	collLocalized            = collate.New(language.AmericanEnglish)
	collLocalizedInsensitive = collate.New(language.AmericanEnglish, collate.IgnoreCase)
)

func binaryCompare(a, b string) int { return strings.Compare(a, b) }

// stringCompare is the default collation: a Unicode Collation Algorithm
// comparison, so canonically equivalent forms (e.g. "e" + combining
// acute vs precomposed "é") compare equal.
func stringCompare(a, b string) int { return collCaseSensitive.CompareString(a, b) }

func caseInsensitiveCompare(a, b string) int { return collCaseInsensitive.CompareString(a, b) }

func localizedCompare(a, b string) int { return collLocalized.CompareString(a, b) }

func localizedCaseInsensitiveCompare(a, b string) int {
	return collLocalizedInsensitive.CompareString(a, b)
}

var builtins = map[string]Comparator{
	"binary":                   binaryCompare,
	"string":                   stringCompare,
	"caseinsensitive":          caseInsensitiveCompare,
	"localized":                localizedCompare,
	"localizedcaseinsensitive": localizedCaseInsensitiveCompare,
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Register installs a custom comparator under name, shadowing a built-in
// of the same (case-folded) name if any.
func (r *Registry) Register(name string, cmp Comparator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[normalize(name)] = cmp
}

// Lookup resolves name (case-folded) to its comparator.
func (r *Registry) Lookup(name string) (Comparator, bool) {
	n := normalize(name)
	r.mu.RLock()
	c, ok := r.custom[n]
	r.mu.RUnlock()
	if ok {
		return c, true
	}
	c, ok = builtins[n]
	return c, ok
}

// Names lists every collation name known to r, built-in and custom,
// sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(builtins)+len(r.custom))
	for n := range builtins {
		seen[n] = true
	}
	for n := range r.custom {
		seen[n] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
