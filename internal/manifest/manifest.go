// Package manifest reads and writes the project manifest (Unlab.toml) and
// lock file (Unlab.lock), spec §4.7/§4.9. Grounded on the teacher's
// manifest.go/lock.go (JSON structs mapped from a raw wire struct), adapted
// to TOML via github.com/pelletier/go-toml/v2 since spec §4.9 fixes the
// manifest/lock format as TOML rather than JSON.
package manifest

import (
	"io"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/luckboy/unlab-gpu/internal/pkgname"
)

const (
	// FileName is the project manifest's fixed name (spec §4.9).
	FileName = "Unlab.toml"
	// LockFileName is the version-pin lock file's fixed name.
	LockFileName = "Unlab.lock"
)

// PackageInfo is the manifest's required `[package]` table.
type PackageInfo struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description,omitempty"`
	Authors     []string `toml:"authors,omitempty"`
	License     string   `toml:"license,omitempty"`
}

// SourceLocation names one concrete place a version's archive/tree lives.
type SourceLocation struct {
	Dir  string `toml:"dir,omitempty"`
	File string `toml:"file,omitempty"`
	URL  string `toml:"url,omitempty"`
}

// SourceEntry is a manifest `[sources.<name>]` entry: either a rename to
// another package name, or a custom per-version location map (spec §4.7's
// `Renamed(PkgName) | Versions({version→(dir|file|url)})`).
type SourceEntry struct {
	Rename   string                    `toml:"rename,omitempty"`
	Versions map[string]SourceLocation `toml:"versions,omitempty"`
}

// IsRenamed reports whether this entry is a rename indirection rather than
// a custom version map.
func (s SourceEntry) IsRenamed() bool { return s.Rename != "" }

// Manifest is the parsed form of Unlab.toml.
type Manifest struct {
	Package      PackageInfo            `toml:"package"`
	Dependencies map[string]string      `toml:"dependencies,omitempty"`
	Constraints  map[string]string      `toml:"constraints,omitempty"`
	Sources      map[string]SourceEntry `toml:"sources,omitempty"`
}

// NewManifest builds a fresh Manifest for `unlab-gpu init`/`new` scaffolding
// (SPEC_FULL §4.1): a package table for name, no dependencies/constraints/
// sources yet.
func NewManifest(name string) (*Manifest, error) {
	if err := pkgname.Validate(name); err != nil {
		return nil, err
	}
	return &Manifest{Package: PackageInfo{Name: name}}, nil
}

// Read parses a Manifest from r.
func Read(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Write serializes m to w.
func (m *Manifest) Write(w io.Writer) error {
	enc := toml.NewEncoder(w)
	return enc.Encode(m)
}

// Save writes m to path.
func (m *Manifest) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Write(f)
}

// Resolve looks a dependency name up through sources, following a single
// rename indirection (spec's "renamed-sources indirection"): if sources
// names name as a rename, the returned name is the target instead.
func (m *Manifest) Resolve(name string) string {
	if m.Sources == nil {
		return name
	}
	if s, ok := m.Sources[name]; ok && s.IsRenamed() {
		return s.Rename
	}
	return name
}
