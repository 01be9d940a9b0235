// Package version implements the Version and VersionReq types (spec §4.7,
// component H): an ordered numeric component sequence plus optional
// pre-release identifiers, and a comma-separated list of range predicates
// (`*`, `=`, `!=`, `<`, `<=`, `>`, `>=`, `^`, `~`). Parsing and the base
// precedence rules (including pre-release-vs-release) are delegated to
// github.com/Masterminds/semver/v3; the `^`/`~` shorthand is layered on top,
// since semver/v3's own Constraints type encodes
// a slightly different shorthand dialect (npm-style, not this spec's).
package version

import (
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"

	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// Version wraps a parsed semantic version.
type Version struct {
	v *mmsemver.Version
}

// Parse parses a canonical version string (e.g. "1.2.3", "1.2.3-rc.1").
func Parse(s string) (Version, error) {
	v, err := mmsemver.NewVersion(s)
	if err != nil {
		return Version{}, uerr.InvalidVersion(s + ": " + err.Error())
	}
	return Version{v: v}, nil
}

// String returns the canonical form (parse∘format = identity).
func (v Version) String() string { return v.v.String() }

func (v Version) Major() uint64 { return v.v.Major() }
func (v Version) Minor() uint64 { return v.v.Minor() }
func (v Version) Patch() uint64 { return v.v.Patch() }
func (v Version) Prerelease() string { return v.v.Prerelease() }

// Less reports whether v orders strictly before o (spec §4.7: lexicographic
// on numeric components, missing = 0; then a pre-release version is less
// than an otherwise-equal release version; within pre-release identifiers,
// numeric < alphanumeric, then compared by value or lexicographically).
// Build metadata never participates.
func (v Version) Less(o Version) bool { return v.v.LessThan(o.v) }

// Equal reports numeric+prerelease equality (build metadata excluded).
func (v Version) Equal(o Version) bool { return v.v.Equal(o.v) }

// Compare returns -1, 0, or 1 per the spec's total order.
func (v Version) Compare(o Version) int { return v.v.Compare(o.v) }

// ---- VersionReq ----

// req is one parsed single requirement.
type req struct {
	op  string // "*", "=", "!=", "<", "<=", ">", ">=", "^", "~"
	ver Version
}

// VersionReq is a comma-separated list of single requirements, all of which
// must match (AND semantics, spec §4.7).
type VersionReq struct {
	reqs []req
}

// ParseReq parses a VersionReq string.
func ParseReq(s string) (VersionReq, error) {
	var out VersionReq
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := parseOne(part)
		if err != nil {
			return VersionReq{}, err
		}
		out.reqs = append(out.reqs, r)
	}
	return out, nil
}

func parseOne(s string) (req, error) {
	if s == "*" {
		return req{op: "*"}, nil
	}
	for _, op := range []string{"!=", "<=", ">=", "=", "<", ">", "^", "~"} {
		if strings.HasPrefix(s, op) {
			rest := strings.TrimSpace(s[len(op):])
			v, err := Parse(rest)
			if err != nil {
				return req{}, err
			}
			return req{op: op, ver: v}, nil
		}
	}
	v, err := Parse(s)
	if err != nil {
		return req{}, err
	}
	return req{op: "=", ver: v}, nil
}

// Matches reports whether v satisfies every comma-separated requirement.
func (r VersionReq) Matches(v Version) bool {
	for _, one := range r.reqs {
		if !matchesOne(one, v) {
			return false
		}
	}
	return true
}

func matchesOne(r req, v Version) bool {
	switch r.op {
	case "*":
		return true
	case "=":
		return v.Equal(r.ver)
	case "!=":
		return !v.Equal(r.ver)
	case "<":
		return v.Less(r.ver)
	case "<=":
		return v.Less(r.ver) || v.Equal(r.ver)
	case ">":
		return r.ver.Less(v)
	case ">=":
		return r.ver.Less(v) || v.Equal(r.ver)
	case "^":
		// Same as the most-significant non-zero numeric component: if
		// major != 0, require major match and v >= req; if major == 0,
		// require minor match (and minor != 0 ⇒ minor match, else patch
		// governs), and v >= req within that component.
		return caretMatches(r.ver, v)
	case "~":
		// Same first two numeric components.
		if v.Major() != r.ver.Major() || v.Minor() != r.ver.Minor() {
			return false
		}
		return r.ver.Less(v) || v.Equal(r.ver)
	default:
		return false
	}
}

func caretMatches(req, v Version) bool {
	if !(req.Less(v) || req.Equal(v)) {
		return false
	}
	if req.Major() != 0 {
		return v.Major() == req.Major()
	}
	if req.Minor() != 0 {
		return v.Major() == 0 && v.Minor() == req.Minor()
	}
	return v.Major() == 0 && v.Minor() == 0 && v.Patch() == req.Patch()
}

// String reassembles the canonical comma-separated form.
func (r VersionReq) String() string {
	parts := make([]string, len(r.reqs))
	for i, one := range r.reqs {
		if one.op == "*" {
			parts[i] = "*"
			continue
		}
		parts[i] = one.op + one.ver.String()
	}
	return strings.Join(parts, ",")
}
