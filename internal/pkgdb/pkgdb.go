// Package pkgdb implements the package database (spec §4.8, component K):
// a key-value store with named buckets (versions, new_versions,
// pkgs_to_remove), mutated transactionally. Backed by go.etcd.io/bbolt, the
// maintained successor to the teacher's github.com/boltdb/bolt (see
// DESIGN.md): identical bucket/transaction API, actively maintained.
package pkgdb

import (
	"go.etcd.io/bbolt"
)

var (
	bucketVersions      = []byte("versions")
	bucketNewVersions   = []byte("new_versions")
	bucketPkgsToRemove  = []byte("pkgs_to_remove")
)

// DB wraps a bbolt database with the three fixed buckets the package
// manager needs.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (creating if absent) the package database at path, and
// ensures all three buckets exist.
func Open(path string) (*DB, error) {
	b, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, err
	}
	err = b.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVersions, bucketNewVersions, bucketPkgsToRemove} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	return &DB{bolt: b}, nil
}

func (db *DB) Close() error { return db.bolt.Close() }

// InstalledVersion returns the currently-installed version string for
// name, if any.
func (db *DB) InstalledVersion(name string) (string, bool, error) {
	var v string
	var ok bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVersions).Get([]byte(name))
		if b != nil {
			v, ok = string(b), true
		}
		return nil
	})
	return v, ok, err
}

// StagedVersion returns the staged (not-yet-committed) version for name,
// if any (spec §4.8 prepare phase: "prefer the version in new_versions if
// set").
func (db *DB) StagedVersion(name string) (string, bool, error) {
	var v string
	var ok bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNewVersions).Get([]byte(name))
		if b != nil {
			v, ok = string(b), true
		}
		return nil
	})
	return v, ok, err
}

// StageVersion records name's chosen version into new_versions, pending
// commit.
func (db *DB) StageVersion(name, ver string) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNewVersions).Put([]byte(name), []byte(ver))
	})
}

// MarkForRemoval records name in pkgs_to_remove, pending commit.
func (db *DB) MarkForRemoval(name string) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPkgsToRemove).Put([]byte(name), []byte{1})
	})
}

// Commit atomically (spec §4.8 commit phase): moves every staged
// new_versions entry into versions, and deletes every pkgs_to_remove
// entry's versions record, clearing both staging buckets. bbolt's
// transactions span every bucket in the database, so this single Update
// call satisfies the multi-bucket-transaction requirement without a
// write-ahead-log fallback (see DESIGN.md).
func (db *DB) Commit() error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		versions := tx.Bucket(bucketVersions)
		newVersions := tx.Bucket(bucketNewVersions)
		toRemove := tx.Bucket(bucketPkgsToRemove)

		if err := newVersions.ForEach(func(k, v []byte) error {
			return versions.Put(append([]byte(nil), k...), append([]byte(nil), v...))
		}); err != nil {
			return err
		}
		if err := clearBucket(newVersions); err != nil {
			return err
		}

		var removeNames [][]byte
		if err := toRemove.ForEach(func(k, v []byte) error {
			removeNames = append(removeNames, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range removeNames {
			if err := versions.Delete(name); err != nil {
				return err
			}
			if err := toRemove.Delete(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearBucket(b *bbolt.Bucket) error {
	var keys [][]byte
	if err := b.ForEach(func(k, v []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// HasPendingRemovals reports whether pkgs_to_remove still holds any entry
// (spec §4.8 crash recovery: a crash between MarkForRemoval and Commit
// leaves this bucket non-empty until continue/clean reconciles it).
func (db *DB) HasPendingRemovals() (bool, error) {
	var pending bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(bucketPkgsToRemove).Cursor().First()
		pending = k != nil
		return nil
	})
	return pending, err
}

// HasStagedVersions reports whether new_versions still holds any entry not
// yet moved into versions by Commit.
func (db *DB) HasStagedVersions() (bool, error) {
	var pending bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(bucketNewVersions).Cursor().First()
		pending = k != nil
		return nil
	})
	return pending, err
}

// AllInstalled returns every currently-installed name→version pair.
func (db *DB) AllInstalled() (map[string]string, error) {
	out := make(map[string]string)
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVersions).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}
