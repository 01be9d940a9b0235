// Package testutil provides the deep-diff test helper shared by this
// module's table-driven tests. Grounded on the teacher's
// internal/test/diff.go: messagediff.PrettyDiff for struct/slice/map
// comparisons, with kr/pretty supplying a compact one-value dump for the
// failure message's "got" side.
package testutil

import (
	"github.com/d4l3k/messagediff"
	"github.com/kr/pretty"
)

// Diff reports whether a and b are deeply equal, and if not, a
// human-readable diff suitable for t.Errorf.
func Diff(a, b interface{}) (diff string, equal bool) {
	return messagediff.PrettyDiff(a, b)
}

// Sprint renders v compactly for a failure message's "got %s" slot.
func Sprint(v interface{}) string {
	return pretty.Sprint(v)
}
