// Package pkgname validates package-name strings (spec §4.7/GLOSSARY):
// `segment/segment/…`, at least two segments, no empty, `.`, `..`, or
// backslash-containing segment.
package pkgname

import (
	"strings"

	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// Validate checks name against the PkgName grammar, returning an
// uerr.Error(InvalidPkgName) describing the first violation found.
func Validate(name string) error {
	segs := strings.Split(name, "/")
	if len(segs) < 2 {
		return uerr.InvalidPkgName(name + ": must have at least two segments")
	}
	for _, s := range segs {
		if s == "" {
			return uerr.InvalidPkgName(name + ": segments must not be empty")
		}
		if s == "." || s == ".." {
			return uerr.InvalidPkgName(name + ": segments must not be \".\" or \"..\"")
		}
		if strings.ContainsAny(s, "\\") {
			return uerr.InvalidPkgName(name + ": segments must not contain a backslash")
		}
	}
	return nil
}

// Segments splits an already-validated name into its path segments.
func Segments(name string) []string { return strings.Split(name, "/") }

// Join reassembles segments into a package name string.
func Join(segs []string) string { return strings.Join(segs, "/") }
