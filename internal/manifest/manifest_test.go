package manifest

import (
	"bytes"
	"strings"
	"testing"
)

func TestManifestRoundTrip(t *testing.T) {
	m := &Manifest{
		Package: PackageInfo{Name: "alice/tools", Description: "helpers", License: "MIT"},
		Dependencies: map[string]string{
			"bob/matrix": "^1.2.0",
		},
		Constraints: map[string]string{
			"bob/matrix": "<2.0.0",
		},
		Sources: map[string]SourceEntry{
			"bob/matrix": {Versions: map[string]SourceLocation{
				"1.2.0": {URL: "https://example.com/matrix-1.2.0.tar.gz"},
			}},
			"carol/legacy": {Rename: "carol/tools"},
		},
	}

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Package.Name != m.Package.Name {
		t.Errorf("package name: got %q, want %q", got.Package.Name, m.Package.Name)
	}
	if got.Dependencies["bob/matrix"] != "^1.2.0" {
		t.Errorf("dependency req: got %q", got.Dependencies["bob/matrix"])
	}
	if got.Resolve("carol/legacy") != "carol/tools" {
		t.Errorf("resolve rename: got %q", got.Resolve("carol/legacy"))
	}
	if got.Resolve("bob/matrix") != "bob/matrix" {
		t.Errorf("resolve non-renamed should be identity: got %q", got.Resolve("bob/matrix"))
	}
}

func TestNewManifestValidatesName(t *testing.T) {
	if _, err := NewManifest("not-a-valid-name"); err == nil {
		t.Errorf("expected an error for a single-segment package name")
	}
	m, err := NewManifest("alice/tools")
	if err != nil {
		t.Fatalf("NewManifest: %v", err)
	}
	if m.Package.Name != "alice/tools" {
		t.Errorf("got %q", m.Package.Name)
	}
}

func TestLockRoundTrip(t *testing.T) {
	l := &Lock{Packages: map[string]string{"bob/matrix": "1.2.0"}}
	var buf bytes.Buffer
	if err := l.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadLock(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v, ok := got.Version("bob/matrix"); !ok || v != "1.2.0" {
		t.Errorf("got %q, %v", v, ok)
	}
}
