package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/luckboy/unlab-gpu/internal/manifest"
	"github.com/luckboy/unlab-gpu/internal/version"
)

// CustomBackend serves the per-manifest version→{dir,file,url} map declared
// in a manifest's [sources.<name>] table (spec §4.8: "custom (per-manifest
// version→{dir,file,url})").
type CustomBackend struct {
	locations  map[string]manifest.SourceLocation
	versions   map[string]version.Version
	downloader Downloader
	cacheDir   string
	current    version.Version
}

// NewCustomBackend builds a CustomBackend from a manifest SourceEntry's
// Versions map.
func NewCustomBackend(locations map[string]manifest.SourceLocation, cacheDir string, downloader Downloader) (*CustomBackend, error) {
	versions := make(map[string]version.Version, len(locations))
	for verStr := range locations {
		v, err := version.Parse(verStr)
		if err != nil {
			return nil, err
		}
		versions[verStr] = v
	}
	return &CustomBackend{locations: locations, versions: versions, cacheDir: cacheDir, downloader: downloader}, nil
}

// Update is a no-op: the version set is fixed by the manifest, not fetched.
func (b *CustomBackend) Update(ctx context.Context) error { return nil }

func (b *CustomBackend) Versions(ctx context.Context) ([]version.Version, error) {
	out := make([]version.Version, 0, len(b.versions))
	for _, v := range b.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (b *CustomBackend) SetCurrentVersion(v version.Version) { b.current = v }

func (b *CustomBackend) Dir(ctx context.Context) (string, error) {
	verStr, ok := tagFor(b.versions, b.current)
	if !ok {
		return "", &UnknownVersionError{Version: b.current.String()}
	}
	loc := b.locations[verStr]
	switch {
	case loc.Dir != "":
		return loc.Dir, nil
	case loc.File != "":
		destDir := filepath.Join(b.cacheDir, verStr)
		return extractArchive(loc.File, destDir)
	case loc.URL != "":
		destDir := filepath.Join(b.cacheDir, verStr)
		archivePath := filepath.Join(b.cacheDir, verStr+filepath.Ext(loc.URL))
		return fetchAndExtractTarGz(ctx, b.downloader, loc.URL, archivePath, destDir)
	default:
		return "", &InvalidSourceLocationError{Version: verStr}
	}
}

// InvalidSourceLocationError reports a [sources] version entry with none
// of dir/file/url set.
type InvalidSourceLocationError struct{ Version string }

func (e *InvalidSourceLocationError) Error() string {
	return "source location for version " + e.Version + " names none of dir, file, or url"
}

// statDir reports whether path both exists and is a directory; used to
// skip redundant extraction when a cached copy is already present (spec §8
// scenario 7: a second install of an already-cached version must not
// re-download).
func statDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
