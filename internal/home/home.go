// Package home resolves the on-disk layout and environment variables for
// both the user's home installation and an in-tree work directory (spec
// §4.9, grounded on original_source/src/home.rs, translated into Go's
// os.UserHomeDir/os.Getenv idiom mirroring the teacher's context.go
// NewContext pattern of deriving configuration from the environment).
package home

import (
	"os"
	"path/filepath"
	"strings"
)

// Home holds the resolved paths for one root (either the user's home
// directory or an in-tree "work" directory, selected by IsWorkDir at
// construction).
type Home struct {
	HomeDir          string
	BackendConfigFile string
	HistoryFile      string
	PkgConfigFile    string
	BinPath          string
	LibPath          string
	DocPath          string
}

// Opts overrides any of Home's resolved fields (all optional; empty means
// "resolve from the environment").
type Opts struct {
	HomeDir string
	BinPath string
	LibPath string
	DocPath string
	// IsWorkDir selects the WORK_-prefixed environment variables and a
	// "work" relative default root instead of the user's home directory.
	IsWorkDir bool
}

// New resolves a Home from opts, falling back to UNLAB_GPU_HOME (or the
// OS's user home directory plus ".unlab-gpu") and the UNLAB_GPU_* /
// UNLAB_GPU_WORK_* path variables.
func New(opts Opts) (*Home, error) {
	homeDir := opts.HomeDir
	if homeDir == "" {
		if v := os.Getenv("UNLAB_GPU_HOME"); v != "" {
			homeDir = v
		} else if uhd, err := os.UserHomeDir(); err == nil {
			homeDir = filepath.Join(uhd, ".unlab-gpu")
		} else {
			homeDir = ".unlab-gpu"
		}
	}

	pathFrom := func(override, envVar, workEnvVar, dir string) string {
		if override != "" {
			return override
		}
		if !opts.IsWorkDir {
			if v := os.Getenv(envVar); v != "" {
				return v
			}
			return filepath.Join(homeDir, dir)
		}
		if v := os.Getenv(workEnvVar); v != "" {
			return v
		}
		return filepath.Join("work", dir)
	}

	return &Home{
		HomeDir:           homeDir,
		BackendConfigFile: filepath.Join(homeDir, "backend.toml"),
		HistoryFile:       filepath.Join(homeDir, "history.txt"),
		PkgConfigFile:     filepath.Join(homeDir, "pkg.toml"),
		BinPath:           pathFrom(opts.BinPath, "UNLAB_GPU_BIN_PATH", "UNLAB_GPU_WORK_BIN_PATH", "bin"),
		LibPath:           pathFrom(opts.LibPath, "UNLAB_GPU_LIB_PATH", "UNLAB_GPU_WORK_LIB_PATH", "lib"),
		DocPath:           pathFrom(opts.DocPath, "UNLAB_GPU_DOC_PATH", "UNLAB_GPU_WORK_DOC_PATH", "doc"),
	}, nil
}

// AddDirsToBinPath prepends dirs (in order) to BinPath, using the OS path
// list separator.
func (h *Home) AddDirsToBinPath(dirs []string) { h.BinPath = prependDirs(h.BinPath, dirs) }

func (h *Home) AddDirsToLibPath(dirs []string) { h.LibPath = prependDirs(h.LibPath, dirs) }

func (h *Home) AddDirsToDocPath(dirs []string) { h.DocPath = prependDirs(h.DocPath, dirs) }

func prependDirs(path string, dirs []string) string {
	if len(dirs) == 0 {
		return path
	}
	all := append(append([]string(nil), dirs...), filepath.SplitList(path)...)
	return strings.Join(all, string(os.PathListSeparator))
}

// WorkVarInfoDir, WorkVarInfoNewPartDir, etc. name the work-directory
// staging layout used by the package manager (spec §4.8).
func WorkVarInfoDir(workDir string) string         { return filepath.Join(workDir, "var", "info") }
func WorkVarInfoNewPartDir(workDir string) string  { return filepath.Join(workDir, "var", "info.new.part") }
func WorkVarInfoNewDir(workDir string) string      { return filepath.Join(workDir, "var", "info.new") }
func WorkPkgDBFile(workDir string) string          { return filepath.Join(workDir, "var", "pkg.db") }
func WorkTmpDir(workDir string) string             { return filepath.Join(workDir, "tmp") }
func WorkManifestFile(workDir string) string       { return filepath.Join(workDir, "Unlab.toml") }
func WorkLockFile(workDir string) string           { return filepath.Join(workDir, "Unlab.lock") }

// CacheDir returns the home-directory download cache path for a package
// path and version (spec §4.9: cache/{pkg-path}/{version}/file[.zip|.tar.gz]).
func (h *Home) CacheDir(pkgPath, ver string) string {
	return filepath.Join(h.HomeDir, "cache", pkgPath, ver)
}
