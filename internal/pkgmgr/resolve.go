// Package pkgmgr implements the two-phase (prepare/commit) package
// installer (spec §4.8, component K): DFS dependency resolution with a
// first-fit-maximum version solver, path-conflict detection, and crash-safe
// staged commit. Grounded on the teacher's solver.go/selection.go/
// version_queue.go/satisfy.go/bridge.go/rootdata.go (read for structure and
// then substantially rewritten: the teacher solves a SAT-like constraint
// problem over Go import graphs, this module solves the simpler
// "DFS, pick first fitting max version" problem spec §4.8 actually
// describes) and on internal/dfs for the traversal engine.
package pkgmgr

import (
	"context"
	"fmt"

	"github.com/luckboy/unlab-gpu/internal/dfs"
	"github.com/luckboy/unlab-gpu/internal/manifest"
	"github.com/luckboy/unlab-gpu/internal/pkgdb"
	"github.com/luckboy/unlab-gpu/internal/pkgname"
	"github.com/luckboy/unlab-gpu/internal/source"
	"github.com/luckboy/unlab-gpu/internal/uerr"
	"github.com/luckboy/unlab-gpu/internal/version"
)

// BackendFactory resolves the source.Backend that serves a given package
// name (constructed from the project manifest's [sources] table by the
// caller, since only the caller knows the manifest in scope).
type BackendFactory func(name string) (source.Backend, error)

// Staged holds one package's resolved state during a Prepare run.
type Staged struct {
	Name       string
	Version    version.Version
	Manifest   *manifest.Manifest
	Dependents map[string]bool // names of packages that require this one
	Dir        string          // extracted source directory
	Paths      []string        // relative install paths, set by path-conflict validation
}

// Resolver drives dependency resolution and staging for one work directory.
type Resolver struct {
	DB      *pkgdb.DB
	Lock    *manifest.Lock
	Global  map[string]string // global manifest [constraints]
	Backend BackendFactory
	Update  bool // --update: refresh version caches, ignore installed pin

	staged map[string]*Staged
}

// NewResolver creates a Resolver.
func NewResolver(db *pkgdb.DB, lock *manifest.Lock, global map[string]string, backend BackendFactory, update bool) *Resolver {
	return &Resolver{DB: db, Lock: lock, Global: global, Backend: backend, Update: update, staged: make(map[string]*Staged)}
}

// resolveGraph adapts Resolver to dfs.Graph: neighbors of a package name are
// its manifest's dependency names, available only once that package has
// itself been resolved (pre-visited).
type resolveGraph struct{ r *Resolver }

func (g resolveGraph) Neighbors(v interface{}) []interface{} {
	name := v.(string)
	st, ok := g.r.staged[name]
	if !ok || st.Manifest == nil {
		return nil
	}
	out := make([]interface{}, 0, len(st.Manifest.Dependencies))
	for dep := range st.Manifest.Dependencies {
		out = append(out, st.Manifest.Resolve(dep))
	}
	return out
}

// Prepare resolves names and every transitive dependency, choosing for each
// the first-fit-maximum version (spec §4.8 prepare phase), and populates
// r.staged. It does not touch the filesystem's installed tree; call
// ComputePaths and Stage afterward to run path-conflict detection and write the
// staging directory.
func (r *Resolver) Prepare(names []string) error {
	w := dfs.NewWalker(resolveGraph{r}, r.visit, nil)
	for _, n := range names {
		if err := w.Run(n); err != nil {
			if c, ok := err.(*dfs.ErrCycle); ok {
				return uerr.PkgDepCycle(fmt.Sprintf("%v", c.Path))
			}
			return err
		}
	}
	r.computeDependents()
	return r.revalidateVersions()
}

func (r *Resolver) visit(v interface{}) error {
	name := v.(string)
	if err := pkgname.Validate(name); err != nil {
		return err
	}
	ver, err := r.chooseVersion(name)
	if err != nil {
		return err
	}
	backend, err := r.Backend(name)
	if err != nil {
		return uerr.PkgName(name, err.Error())
	}
	backend.SetCurrentVersion(ver)
	dir, err := backend.Dir(context.Background())
	if err != nil {
		return uerr.PkgName(name, err.Error())
	}
	m, err := manifest.Load(dir + "/" + manifest.FileName)
	if err != nil {
		m = &manifest.Manifest{Package: manifest.PackageInfo{Name: name}}
	}
	r.staged[name] = &Staged{Name: name, Version: ver, Manifest: m, Dir: dir, Dependents: make(map[string]bool)}
	return nil
}

// chooseVersion implements spec §4.8(a): prefer a staged new_versions pin,
// else keep the installed version unless --update, else pick the maximum
// available version satisfying every currently-known dependent requirement,
// the global constraints, and the lock file.
func (r *Resolver) chooseVersion(name string) (version.Version, error) {
	if v, ok, err := r.DB.StagedVersion(name); err != nil {
		return version.Version{}, err
	} else if ok {
		return version.Parse(v)
	}
	if !r.Update {
		if v, ok, err := r.DB.InstalledVersion(name); err != nil {
			return version.Version{}, err
		} else if ok {
			return version.Parse(v)
		}
	}
	backend, err := r.Backend(name)
	if err != nil {
		return version.Version{}, uerr.PkgName(name, err.Error())
	}
	if err := backend.Update(context.Background()); err != nil {
		return version.Version{}, uerr.PkgName(name, err.Error())
	}
	avail, err := backend.Versions(context.Background())
	if err != nil {
		return version.Version{}, uerr.PkgName(name, err.Error())
	}
	return r.maxSatisfying(name, avail)
}

func (r *Resolver) maxSatisfying(name string, avail []version.Version) (version.Version, error) {
	var reqs []version.VersionReq
	if lockVer, ok := r.Lock.Version(name); ok {
		vr, err := version.ParseReq("=" + lockVer)
		if err != nil {
			return version.Version{}, err
		}
		reqs = append(reqs, vr)
	}
	if g, ok := r.Global[name]; ok {
		vr, err := version.ParseReq(g)
		if err != nil {
			return version.Version{}, err
		}
		reqs = append(reqs, vr)
	}
	for _, st := range r.staged {
		if st.Manifest == nil {
			continue
		}
		resolvedName := st.Manifest.Resolve(name)
		if resolvedName != name {
			continue
		}
		if dreq, ok := st.Manifest.Dependencies[name]; ok {
			vr, err := version.ParseReq(dreq)
			if err != nil {
				return version.Version{}, err
			}
			reqs = append(reqs, vr)
		}
	}

	var best *version.Version
	for i := range avail {
		v := avail[i]
		ok := true
		for _, vr := range reqs {
			if !vr.Matches(v) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if best == nil || best.Less(v) {
			vv := v
			best = &vv
		}
	}
	if best == nil {
		return version.Version{}, uerr.PkgName(name, "version requirements of dependents are contradictory")
	}
	return *best, nil
}

func (r *Resolver) computeDependents() {
	for name, st := range r.staged {
		if st.Manifest == nil {
			continue
		}
		for dep := range st.Manifest.Dependencies {
			resolved := st.Manifest.Resolve(dep)
			if target, ok := r.staged[resolved]; ok {
				target.Dependents[name] = true
			}
		}
	}
}

// revalidateVersions re-checks every staged package against the now-fully-
// known dependent set (spec §4.8 validation: "the chosen version must still
// be the max under the union of its now-known dependents").
func (r *Resolver) revalidateVersions() error {
	for name, st := range r.staged {
		backend, err := r.Backend(name)
		if err != nil {
			return uerr.PkgName(name, err.Error())
		}
		avail, err := backend.Versions(context.Background())
		if err != nil {
			return uerr.PkgName(name, err.Error())
		}
		best, err := r.maxSatisfying(name, avail)
		if err != nil {
			return err
		}
		if !best.Equal(st.Version) {
			return uerr.PkgName(name, fmt.Sprintf("version requirements of dependents are contradictory: chose %s but %s now required", st.Version, best))
		}
	}
	return nil
}

// Staged returns the package staged under name, if resolved.
func (r *Resolver) Staged(name string) (*Staged, bool) {
	st, ok := r.staged[name]
	return st, ok
}

// AllStaged returns every resolved package in this Prepare run.
func (r *Resolver) AllStaged() map[string]*Staged { return r.staged }
