// Package fsutil wraps the recursive copy/remove primitives spec.md §1
// scopes out as "filesystem copy/remove utilities" (standard-library
// concern; see DESIGN.md). Grounded on original_source/src/fs.rs, which
// exposes the same two operations to scripts and to the package manager.
package fsutil

import (
	"io"
	"os"
	"path/filepath"
)

// RemoveAll recursively deletes path, tolerating a path that does not
// exist (original_source/src/fs.rs's `recursively_remove`).
func RemoveAll(path string) error {
	err := os.RemoveAll(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// CopyDir recursively copies every file under src into dst, creating
// directories as needed and preserving file modes. Used by package-manager
// staging copies and by the `fs` scripting builtins (original_source/src/fs.rs's
// `recursively_copy`).
func CopyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return CopyFile(path, target, info.Mode())
	})
}

// CopyFile copies a single file from src to dst, creating dst's parent
// directory if needed.
func CopyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
