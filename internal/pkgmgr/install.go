package pkgmgr

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	radix "github.com/armon/go-radix"
	"github.com/karrick/godirwalk"

	"github.com/luckboy/unlab-gpu/internal/fsutil"
	"github.com/luckboy/unlab-gpu/internal/home"
	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// PathKind distinguishes the three install roots (bin, lib, doc), which the
// conflict checker treats differently (spec §4.8: "bin entries may not nest below one directory
// level; lib entries may nest to two").
type PathKind int

const (
	PathBin PathKind = iota
	PathLib
	PathDoc
)

func (k PathKind) depthCap() int {
	switch k {
	case PathBin:
		return 1
	case PathLib:
		return 2
	default:
		return -1 // doc has no depth cap
	}
}

// ConflictError reports two packages claiming the same install path.
type ConflictError struct {
	Path     string
	Existing string
	New      string
}

func (e *ConflictError) Error() string {
	return "path conflict: " + e.Path + " is claimed by both " + e.Existing + " and " + e.New
}

// DepthError reports a path nested deeper than its kind allows.
type DepthError struct {
	Path string
	Kind PathKind
	Cap  int
}

func (e *DepthError) Error() string {
	return "path " + e.Path + " nests deeper than the allowed depth of " + strconv.Itoa(e.Cap)
}

// pathTree tracks every install path claimed so far, across all staged
// packages, in a radix.Tree (spec §4.8: "a prefix tree over install paths
// catches both exact-path collisions and a package installing a path that
// is an ancestor directory of another package's path" — a plain map only
// catches the former).
type pathTree struct {
	t *radix.Tree
}

func newPathTree() *pathTree { return &pathTree{t: radix.New()} }

// claim registers relPath for pkgName, rejecting it if relPath (or any
// existing claim) is a prefix of the other — i.e. one package's file would
// sit inside another package's install path.
func (p *pathTree) claim(relPath, pkgName string) error {
	if owner, ok := p.t.Get(relPath); ok {
		return &ConflictError{Path: relPath, Existing: owner.(string), New: pkgName}
	}
	var conflict *ConflictError
	p.t.WalkPrefix(relPath, func(s string, v interface{}) bool {
		if s != relPath {
			conflict = &ConflictError{Path: s, Existing: v.(string), New: pkgName}
			return true
		}
		return false
	})
	if conflict != nil {
		return conflict
	}
	// Also reject relPath nesting inside an existing claim (reverse
	// direction): walk relPath's own ancestor prefixes.
	for dir := filepath.Dir(relPath); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if owner, ok := p.t.Get(dir); ok {
			conflict = &ConflictError{Path: dir, Existing: owner.(string), New: pkgName}
			break
		}
	}
	if conflict != nil {
		return conflict
	}
	p.t.Insert(relPath, pkgName)
	return nil
}

// ComputePaths walks a staged package's extracted directory and records its
// claimed bin/lib/doc relative paths (spec §4.8's manifest-declared install
// roots: "bin/", "lib/", "doc/" subdirectories of the package source tree),
// checking depth caps and cross-package conflicts via tree.
func (r *Resolver) ComputePaths(tree *pathTree) error {
	for name, st := range r.staged {
		for _, sub := range []struct {
			dir  string
			kind PathKind
		}{{"bin", PathBin}, {"lib", PathLib}, {"doc", PathDoc}} {
			root := filepath.Join(st.Dir, sub.dir)
			info, err := os.Stat(root)
			if err != nil || !info.IsDir() {
				continue
			}
			err = godirwalk.Walk(root, &godirwalk.Options{
				Callback: func(osPathname string, de *godirwalk.Dirent) error {
					if de.IsDir() {
						return nil
					}
					rel, err := filepath.Rel(root, osPathname)
					if err != nil {
						return err
					}
					rel = filepath.ToSlash(rel)
					depth := strings.Count(rel, "/")
					if cap := sub.kind.depthCap(); cap >= 0 && depth+1 > cap {
						return &DepthError{Path: rel, Kind: sub.kind, Cap: cap}
					}
					installPath := sub.dir + "/" + rel
					if err := tree.claim(installPath, name); err != nil {
						return err
					}
					st.Paths = append(st.Paths, installPath)
					return nil
				},
				Unsorted:      false,
				FollowSymbolicLinks: false,
			})
			if err != nil {
				return uerr.PkgName(name, err.Error())
			}
		}
	}
	return nil
}

// Stage writes every staged package's paths/version into the work
// directory's info.new.part staging area (spec §4.8's crash-recovery
// layout: info.new.part built fully, then renamed to info.new, then
// consumed and removed by Commit — a single rename makes the hand-off
// point atomic even if the process dies mid-copy).
func (r *Resolver) Stage(workDir string) error {
	tree := newPathTree()
	if err := r.ComputePaths(tree); err != nil {
		return err
	}

	partDir := home.WorkVarInfoNewPartDir(workDir)
	if err := fsutil.RemoveAll(partDir); err != nil {
		return err
	}
	if err := os.MkdirAll(partDir, 0o755); err != nil {
		return err
	}
	for name, st := range r.staged {
		if err := copyPackageFiles(st, filepath.Join(partDir, name)); err != nil {
			return uerr.PkgName(name, err.Error())
		}
	}
	newDir := home.WorkVarInfoNewDir(workDir)
	fsutil.RemoveAll(newDir)
	return os.Rename(partDir, newDir)
}

func copyPackageFiles(st *Staged, destRoot string) error {
	for _, rel := range st.Paths {
		src := filepath.Join(st.Dir, rel)
		dst := filepath.Join(destRoot, rel)
		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		if err := fsutil.CopyFile(src, dst, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}
