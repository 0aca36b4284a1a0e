package collation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/easydb/internal/collation"
)

func TestLookup_BuiltinsAreCaseFolded(t *testing.T) {
	r := collation.NewRegistry()
	for _, name := range []string{"BINARY", "String", "caseInsensitive", "LOCALIZED", "localizedCaseInsensitive"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, "expected builtin %q to resolve", name)
	}
}

func TestStringCollation_NormalizesCombiningSequences(t *testing.T) {
	r := collation.NewRegistry()
	cmp, ok := r.Lookup("string")
	require.True(t, ok)

	precomposed := "café"  // "café" using the single precomposed e-acute code point
	decomposed := "café" // "cafe" followed by a combining acute accent
	assert.Equal(t, 0, cmp(precomposed, decomposed))
}

func TestBinaryCollation_DistinguishesCombiningSequences(t *testing.T) {
	r := collation.NewRegistry()
	cmp, ok := r.Lookup("binary")
	require.True(t, ok)

	precomposed := "café"
	decomposed := "café"
	assert.NotEqual(t, 0, cmp(precomposed, decomposed))
}

func TestRegister_CustomCollationOverridesLookup(t *testing.T) {
	r := collation.NewRegistry()
	r.Register("firstWord", func(a, b string) int {
		rank := func(s string) int {
			if s == "me first!" {
				return -1
			}
			return 0
		}
		ra, rb := rank(a), rank(b)
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		default:
			if a < b {
				return -1
			} else if a > b {
				return 1
			}
			return 0
		}
	})

	cmp, ok := r.Lookup("FIRSTWORD")
	require.True(t, ok)
	assert.Negative(t, cmp("me first!", "a"))
	assert.Negative(t, cmp("a", "x"))
}

func TestNames_IncludesBuiltinsAndCustom(t *testing.T) {
	r := collation.NewRegistry()
	r.Register("custom", func(a, b string) int { return 0 })
	names := r.Names()
	assert.Contains(t, names, "binary")
	assert.Contains(t, names, "custom")
}
