package version

import "testing"

// Grounded on spec §8 scenario 6 ("Version match").
func TestVersionReqMatches(t *testing.T) {
	cases := []struct {
		req     string
		version string
		want    bool
	}{
		{"^1.2.3", "1.2.3", true},
		{"^1.2.3", "1.4.0", true},
		{"^1.2.3", "2.0.0", false},
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{"^0.1.2", "0.1.9", true},
		{"^0.1.2", "0.2.0", false},
		{"*", "0.0.0", true},
		{"*", "99.99.99", true},
	}
	for _, c := range cases {
		vr, err := ParseReq(c.req)
		if err != nil {
			t.Fatalf("ParseReq(%q): %v", c.req, err)
		}
		v, err := Parse(c.version)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.version, err)
		}
		if got := vr.Matches(v); got != c.want {
			t.Errorf("%q matches %q: got %v, want %v", c.req, c.version, got, c.want)
		}
	}
}

// Grounded on spec §8's quantified invariant "parse∘format = identity on
// canonical strings".
func TestVersionRoundTripString(t *testing.T) {
	for _, s := range []string{"1.2.3", "0.1.0", "2.0.0-rc.1", "1.0.0-alpha.2"} {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if v.String() != s {
			t.Errorf("round trip: got %q, want %q", v.String(), s)
		}
	}
}

// Grounded on spec §3's ordering rule: a version with pre-release is less
// than an otherwise-equal version without one.
func TestVersionPrereleaseOrdering(t *testing.T) {
	rel, err := Parse("1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	pre, err := Parse("1.0.0-rc.1")
	if err != nil {
		t.Fatal(err)
	}
	if !pre.Less(rel) {
		t.Errorf("expected 1.0.0-rc.1 < 1.0.0")
	}
	if rel.Less(pre) {
		t.Errorf("expected 1.0.0 to not be less than 1.0.0-rc.1")
	}
}

// Grounded on spec §4.7: comma-separated requirements are ANDed.
func TestVersionReqCommaList(t *testing.T) {
	vr, err := ParseReq(">=1.0.0,<2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	in, _ := Parse("1.5.0")
	out, _ := Parse("2.0.0")
	if !vr.Matches(in) {
		t.Errorf("expected 1.5.0 to satisfy >=1.0.0,<2.0.0")
	}
	if vr.Matches(out) {
		t.Errorf("expected 2.0.0 to violate >=1.0.0,<2.0.0")
	}
}
