// Package testutil holds small test-only helpers shared across the
// module's package-level test files.
package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// AssertRoundTrip fails t with a structural diff if got doesn't deep-equal
// want, for codec/value round-trip tests where testify's reflect.DeepEqual
// failure output is too coarse to spot which field diverged.
func AssertRoundTrip(t *testing.T, want, got any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}
