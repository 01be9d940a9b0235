// Command pkg-cli is the thin entry point over internal/pkgmgr: it parses
// the subcommand named in spec §6 and dispatches to the corresponding
// Manager method. Flag parsing itself and the config, run and console
// subcommands are out-of-core collaborators (spec §1, §6) and are not wired
// here; this file wires only the subcommands with an in-core counterpart,
// including the init/new scaffolding.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/luckboy/unlab-gpu/internal/home"
	"github.com/luckboy/unlab-gpu/internal/manifest"
	"github.com/luckboy/unlab-gpu/internal/pkgmgr"
	"github.com/luckboy/unlab-gpu/internal/pkgname"
	"github.com/luckboy/unlab-gpu/internal/rlog"
	"github.com/luckboy/unlab-gpu/internal/source"
)

func main() {
	log := rlog.New(os.Stderr)
	os.Exit(run(log, os.Args[1:]))
}

func run(log *rlog.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pkg-cli <subcommand> [names...]")
		return 1
	}
	cmd, rest := args[0], args[1:]
	update := hasFlag(rest, "--update")
	names := filterFlags(rest)

	h, err := home.New(home.Opts{})
	if err != nil {
		log.Logf("resolving home: %v", err)
		return 1
	}
	workDir, err := os.Getwd()
	if err != nil {
		log.Logf("%v", err)
		return 1
	}

	mf, err := manifest.Load(home.WorkManifestFile(workDir))
	if err != nil {
		mf = &manifest.Manifest{}
	}
	lock, err := manifest.LoadLock(home.WorkLockFile(workDir))
	if err != nil {
		log.Logf("loading lock file: %v", err)
		return 1
	}

	mgr, err := pkgmgr.NewManager(h, workDir)
	if err != nil {
		log.Logf("opening package database: %v", err)
		return 1
	}
	defer mgr.Close()

	switch cmd {
	case "install", "install-all":
		targets := names
		if cmd == "install-all" {
			for n := range mf.Dependencies {
				targets = append(targets, n)
			}
		}
		if err := mgr.Install(targets, mf.Constraints, lock, backendFactory(h, mf), update); err != nil {
			log.Logf("install: %v", err)
			return 1
		}
	case "remove":
		if err := mgr.Remove(names); err != nil {
			log.Logf("remove: %v", err)
			return 1
		}
	case "continue":
		if err := mgr.Continue(); err != nil {
			log.Logf("continue: %v", err)
			return 1
		}
	case "clean":
		if err := mgr.Clean(); err != nil {
			log.Logf("clean: %v", err)
			return 1
		}
	case "lock":
		installed, err := mgr.DB.AllInstalled()
		if err != nil {
			log.Logf("lock: %v", err)
			return 1
		}
		for n, v := range installed {
			lock.Pin(n, v)
		}
		if err := lock.Save(home.WorkLockFile(workDir)); err != nil {
			log.Logf("lock: %v", err)
			return 1
		}
	case "list":
		installed, err := mgr.DB.AllInstalled()
		if err != nil {
			log.Logf("list: %v", err)
			return 1
		}
		for n, v := range installed {
			fmt.Printf("%s %s\n", n, v)
		}
	case "list-deps":
		if len(names) != 1 {
			fmt.Fprintln(os.Stderr, "usage: pkg-cli list-deps <pkg-name>")
			return 1
		}
		installed, err := mgr.DB.AllInstalled()
		if err != nil {
			log.Logf("list-deps: %v", err)
			return 1
		}
		deps, err := mgr.Names(pkgmgr.ScopeDeps(names[0]), backendFactory(h, mf))
		if err != nil {
			log.Logf("list-deps: %v", err)
			return 1
		}
		for _, n := range deps {
			fmt.Printf("%s %s\n", n, installed[n])
		}
	case "install-deps":
		if len(names) != 1 {
			fmt.Fprintln(os.Stderr, "usage: pkg-cli install-deps <pkg-name>")
			return 1
		}
		deps, err := mgr.Names(pkgmgr.ScopeDeps(names[0]), backendFactory(h, mf))
		if err != nil {
			log.Logf("install-deps: %v", err)
			return 1
		}
		if err := mgr.Install(deps, mf.Constraints, lock, backendFactory(h, mf), update); err != nil {
			log.Logf("install-deps: %v", err)
			return 1
		}
	case "init", "new":
		if len(names) != 1 {
			fmt.Fprintln(os.Stderr, "usage: pkg-cli "+cmd+" <pkg-name>")
			return 1
		}
		nm, err := manifest.NewManifest(names[0])
		if err != nil {
			log.Logf("%s: %v", cmd, err)
			return 1
		}
		if err := nm.Save(home.WorkManifestFile(workDir)); err != nil {
			log.Logf("%s: %v", cmd, err)
			return 1
		}
	default:
		fmt.Fprintln(os.Stderr, "unsupported or out-of-core subcommand: "+cmd)
		return 1
	}
	return 0
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func filterFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if len(a) >= 2 && a[:2] == "--" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// backendFactory resolves a package name's source.Backend from mf's
// [sources] table, following a rename indirection first (SPEC_FULL.md
// §4.1 "Renamed sources"); falling back to treating the name's first two
// segments as a GitHub "owner/repo" when no [sources] entry overrides it.
func backendFactory(h *home.Home, mf *manifest.Manifest) pkgmgr.BackendFactory {
	return func(name string) (source.Backend, error) {
		resolved := mf.Resolve(name)
		segs := pkgname.Segments(resolved)

		if entry, ok := mf.Sources[resolved]; ok && !entry.IsRenamed() {
			return source.NewCustomBackend(entry.Versions, h.CacheDir(resolved, ""), source.NewHTTPDownloader(http.DefaultClient))
		}
		return source.NewGitHubBackend(segs[0], segs[1], h.CacheDir(resolved, ""), http.DefaultClient), nil
	}
}
