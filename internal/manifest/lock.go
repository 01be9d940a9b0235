package manifest

import (
	"io"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Lock is the parsed form of Unlab.lock: one pinned version per package
// name, consulted as a hard constraint during version selection (spec
// §4.8's "...any lock file").
type Lock struct {
	Packages map[string]string `toml:"packages,omitempty"`
}

// ReadLock parses a Lock from r.
func ReadLock(r io.Reader) (*Lock, error) {
	var l Lock
	if err := toml.NewDecoder(r).Decode(&l); err != nil {
		return nil, err
	}
	if l.Packages == nil {
		l.Packages = make(map[string]string)
	}
	return &l, nil
}

// LoadLock reads the lock file at path. A missing file is not an error: it
// returns an empty Lock, since a project may have no pins yet.
func LoadLock(path string) (*Lock, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Lock{Packages: make(map[string]string)}, nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadLock(f)
}

// Write serializes l to w.
func (l *Lock) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(l)
}

// Save writes l to path.
func (l *Lock) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.Write(f)
}

// Pin records name's locked version.
func (l *Lock) Pin(name, ver string) {
	if l.Packages == nil {
		l.Packages = make(map[string]string)
	}
	l.Packages[name] = ver
}

// Version returns name's locked version, if any.
func (l *Lock) Version(name string) (string, bool) {
	v, ok := l.Packages[name]
	return v, ok
}
