// Manager ties the prepare/stage/commit phases together with crash
// recovery (spec §4.8 "Crash recovery", §7 propagation policy: prepare
// errors get a cleanup pass; commit errors abort without cleanup, pending
// Continue or Clean).
package pkgmgr

import (
	"os"

	"github.com/luckboy/unlab-gpu/internal/fsutil"
	"github.com/luckboy/unlab-gpu/internal/home"
	"github.com/luckboy/unlab-gpu/internal/manifest"
	"github.com/luckboy/unlab-gpu/internal/pkgdb"
	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// Manager is the top-level entry point `cmd/pkg-cli` drives: one work
// directory, one package database, one resolved Home install root.
type Manager struct {
	Home    *home.Home
	WorkDir string
	DB      *pkgdb.DB
}

// NewManager opens db and wraps it with h/workDir.
func NewManager(h *home.Home, workDir string) (*Manager, error) {
	db, err := pkgdb.Open(home.WorkPkgDBFile(workDir))
	if err != nil {
		return nil, err
	}
	return &Manager{Home: h, WorkDir: workDir, DB: db}, nil
}

func (m *Manager) Close() error { return m.DB.Close() }

// NeedsRecovery reports whether a prior invocation left staged info.new or
// pkgs_to_remove state behind (spec §4.8: "the manager refuses regular
// install/remove and requires continue or clean").
func (m *Manager) NeedsRecovery() (bool, error) {
	if _, err := os.Stat(home.WorkVarInfoNewDir(m.WorkDir)); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if _, err := os.Stat(home.WorkVarInfoNewPartDir(m.WorkDir)); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if pending, err := m.DB.HasStagedVersions(); err != nil {
		return false, err
	} else if pending {
		return true, nil
	}
	return m.DB.HasPendingRemovals()
}

// Install runs the full prepare -> validate/stage -> commit pipeline for
// names. Any prepare-phase error triggers a cleanup pass over tmp/staging
// (spec §7) before returning; a commit-phase error is returned as-is,
// leaving info.new in place for a later Continue or Clean.
func (m *Manager) Install(names []string, global map[string]string, lock *manifest.Lock, backend BackendFactory, update bool) error {
	if needs, err := m.NeedsRecovery(); err != nil {
		return err
	} else if needs {
		return uerr.Pkg("a previous install is incomplete; run continue or clean first")
	}

	r := NewResolver(m.DB, lock, global, backend, update)
	if err := r.Prepare(names); err != nil {
		m.cleanupStaging()
		return err
	}
	if err := r.Stage(m.WorkDir); err != nil {
		m.cleanupStaging()
		return err
	}

	staged := make(map[string]string, len(r.AllStaged()))
	for name, st := range r.AllStaged() {
		staged[name] = st.Version.String()
	}
	return Commit(m.Home, m.WorkDir, m.DB, staged)
}

// Continue resumes a previously-staged install by finishing Commit against
// whatever info.new is already on disk (spec §4.8 crash recovery: "continue
// (commit whatever is staged)"), then flushes any pkgdb staging left over
// from a crash between MarkForRemoval and db.Commit (Commit is a no-op when
// info.new is absent, so a pending-removal-only crash needs this too).
func (m *Manager) Continue() error {
	if err := Commit(m.Home, m.WorkDir, m.DB, nil); err != nil {
		return err
	}
	return m.DB.Commit()
}

// Clean discards all prepare/commit staging without applying it (spec
// §4.8 crash recovery: "clean (delete all staging)"). A crash between
// MarkForRemoval and db.Commit has already deleted the removed package's
// files, so there is nothing left to discard for pkgs_to_remove; flush it
// the same way Continue would rather than leaving it stuck forever.
func (m *Manager) Clean() error {
	m.cleanupStaging()
	return m.DB.Commit()
}

// Remove stages names for removal and commits immediately (spec §4.8's
// pkgs_to_remove bucket has no separate prepare phase of its own).
func (m *Manager) Remove(names []string) error {
	return Remove(m.Home, m.DB, names)
}

func (m *Manager) cleanupStaging() {
	fsutil.RemoveAll(home.WorkVarInfoNewPartDir(m.WorkDir))
	fsutil.RemoveAll(home.WorkVarInfoNewDir(m.WorkDir))
	fsutil.RemoveAll(home.WorkTmpDir(m.WorkDir))
}
