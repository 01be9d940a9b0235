package pkgmgr

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/luckboy/unlab-gpu/internal/fsutil"
	"github.com/luckboy/unlab-gpu/internal/home"
	"github.com/luckboy/unlab-gpu/internal/pkgdb"
)

// Commit consumes the info.new staging directory written by Stage, copying
// every staged package's files into h's install roots, updating db, and
// finally removing info.new (spec §4.8 commit phase). Safe to call again
// after a crash: if info.new is already gone but info/pkg.db still agree,
// Commit is a no-op.
func Commit(h *home.Home, workDir string, db *pkgdb.DB, staged map[string]string) error {
	newDir := home.WorkVarInfoNewDir(workDir)
	if _, err := os.Stat(newDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	binRoot := canonicalPathEntry(h.BinPath)
	libRoot := canonicalPathEntry(h.LibPath)
	docRoot := canonicalPathEntry(h.DocPath)

	entries, err := os.ReadDir(newDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pkgRoot := filepath.Join(newDir, e.Name())
		if err := installPackageTree(pkgRoot, binRoot, libRoot, docRoot); err != nil {
			return err
		}
		if ver, ok := staged[e.Name()]; ok {
			if err := db.StageVersion(e.Name(), ver); err != nil {
				return err
			}
		}
	}

	if err := db.Commit(); err != nil {
		return err
	}

	infoDir := home.WorkVarInfoDir(workDir)
	fsutil.RemoveAll(infoDir)
	if err := os.Rename(newDir, infoDir); err != nil {
		return err
	}
	return nil
}

// installPackageTree copies pkgRoot's bin/lib/doc subtrees into the
// corresponding install roots, preserving relative structure.
func installPackageTree(pkgRoot, binRoot, libRoot, docRoot string) error {
	for _, sub := range []struct {
		dir, root string
	}{{"bin", binRoot}, {"lib", libRoot}, {"doc", docRoot}} {
		src := filepath.Join(pkgRoot, sub.dir)
		info, err := os.Stat(src)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}
			dst := filepath.Join(sub.root, rel)
			return fsutil.CopyFile(path, dst, fi.Mode())
		}); err != nil {
			return err
		}
	}
	return nil
}

// canonicalPathEntry returns the last OS-path-list entry of path, the
// original install directory every Home.*Path string is built around
// (AddDirsTo*Path prepends extra search directories in front of it, so it
// always ends up last).
func canonicalPathEntry(path string) string {
	parts := filepath.SplitList(path)
	if len(parts) == 0 {
		return path
	}
	return parts[len(parts)-1]
}

// Remove records each installed name in the pkgs_to_remove bucket (spec
// §4.8), deletes its installed files from the install roots right away, and
// then calls db.Commit to apply the removals to the pkgdb. Names that are
// not installed are skipped.
func Remove(h *home.Home, db *pkgdb.DB, names []string) error {
	binRoot := canonicalPathEntry(h.BinPath)
	libRoot := canonicalPathEntry(h.LibPath)
	docRoot := canonicalPathEntry(h.DocPath)
	installed, err := db.AllInstalled()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := installed[name]; !ok {
			continue
		}
		if err := db.MarkForRemoval(name); err != nil {
			return err
		}
		_ = removePackagePrefix(binRoot, name)
		_ = removePackagePrefix(libRoot, name)
		_ = removePackagePrefix(docRoot, name)
	}
	return db.Commit()
}

// removePackagePrefix deletes every file under root whose relative path is
// exactly name or starts with name + "/" (spec §4.8: install paths are
// namespaced by package name, so removal is a prefix sweep, mirroring
// pathTree.claim's own prefix logic).
func removePackagePrefix(root, name string) error {
	return filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == name || strings.HasPrefix(rel, name+"/") {
			return os.Remove(path)
		}
		return nil
	})
}
