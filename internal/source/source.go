// Package source implements the pluggable version/archive backends the
// package manager enumerates and fetches from (spec §4.8, component J):
// custom (per-manifest version→location), GitHub, GitLab, and a generic git
// remote. Grounded on spec §4.8's backend contract ("update, versions,
// set_current_version, dir") and the go.mod domain stack: HTTP pagination
// via github.com/peterhellberg/link (GitHub/GitLab Link-header paging),
// and github.com/Masterminds/vcs for the generic git backend.
package source

import (
	"context"

	"github.com/luckboy/unlab-gpu/internal/version"
)

// Backend is the trait every source implementation satisfies (spec §4.8:
// "a trait with three methods... keeps Git-service specifics out of the
// manager" — this module adds SetCurrentVersion as a fourth, matching
// spec's prose listing of four operations).
type Backend interface {
	// Update refreshes the cached version list from the remote.
	Update(ctx context.Context) error
	// Versions returns the enumerated available versions (from cache;
	// call Update first to refresh).
	Versions(ctx context.Context) ([]version.Version, error)
	// SetCurrentVersion selects which version subsequent Dir calls extract.
	SetCurrentVersion(v version.Version)
	// Dir returns a local extracted directory for the current version,
	// lazily downloading and extracting it if not already cached.
	Dir(ctx context.Context) (string, error)
}

// Progress reports download progress for a single archive fetch.
type Progress func(downloaded, total int64)

// Downloader abstracts the single HTTP client every remote backend shares
// (spec §4.8: "Backends use a single HTTP client with progress callbacks").
type Downloader interface {
	// Download fetches url to destPath, writing to destPath+".part" first
	// and atomically renaming on completion (spec §4.8).
	Download(ctx context.Context, url, destPath string, progress Progress) error
}
