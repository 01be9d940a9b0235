package pkgmgr

import (
	"context"

	"github.com/luckboy/unlab-gpu/internal/dfs"
	"github.com/luckboy/unlab-gpu/internal/manifest"
	"github.com/luckboy/unlab-gpu/internal/uerr"
	"github.com/luckboy/unlab-gpu/internal/version"
)

// Scope selects which installed packages an operation targets: every
// installed package, or one package's transitive dependency subtree
// (SPEC_FULL.md §4.1's "-deps" command family — list-deps, search-deps,
// update-deps, install-deps, continue-deps, clean-deps — all narrow their
// non-"-deps" counterpart from the whole installed set to one subtree).
type Scope struct {
	all  bool
	name string
}

// ScopeAll targets every installed package.
func ScopeAll() Scope { return Scope{all: true} }

// ScopeDeps targets name and its transitive dependencies.
func ScopeDeps(name string) Scope { return Scope{name: name} }

// Names resolves scope to a concrete package-name list. ScopeAll returns
// every installed name; ScopeDeps walks name's transitive dependency
// subtree (including name itself) via each dependency's cached manifest,
// reusing the same DFS engine Resolver.Prepare uses for the install graph.
func (m *Manager) Names(scope Scope, backend BackendFactory) ([]string, error) {
	installed, err := m.DB.AllInstalled()
	if err != nil {
		return nil, err
	}
	if scope.all {
		out := make([]string, 0, len(installed))
		for n := range installed {
			out = append(out, n)
		}
		return out, nil
	}
	if _, ok := installed[scope.name]; !ok {
		return nil, uerr.PkgName(scope.name, "not installed")
	}
	var out []string
	g := scopeGraph{backend: backend, installed: installed}
	w := dfs.NewWalker(g, func(v interface{}) error {
		out = append(out, v.(string))
		return nil
	}, nil)
	if err := w.Run(scope.name); err != nil {
		return nil, err
	}
	return out, nil
}

// scopeGraph adapts installed packages' manifests to dfs.Graph: a
// package's neighbors are its dependency names, resolved from the
// manifest cached in its backend's source directory at its installed
// version.
type scopeGraph struct {
	backend   BackendFactory
	installed map[string]string
}

func (g scopeGraph) Neighbors(v interface{}) []interface{} {
	name := v.(string)
	ver, ok := g.installed[name]
	if !ok {
		return nil
	}
	backend, err := g.backend(name)
	if err != nil {
		return nil
	}
	pv, err := version.Parse(ver)
	if err != nil {
		return nil
	}
	backend.SetCurrentVersion(pv)
	dir, err := backend.Dir(context.Background())
	if err != nil {
		return nil
	}
	mf, err := manifest.Load(dir + "/" + manifest.FileName)
	if err != nil {
		return nil
	}
	out := make([]interface{}, 0, len(mf.Dependencies))
	for dep := range mf.Dependencies {
		out = append(out, mf.Resolve(dep))
	}
	return out
}
