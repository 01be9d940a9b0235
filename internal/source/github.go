package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"

	"github.com/peterhellberg/link"

	"github.com/luckboy/unlab-gpu/internal/version"
)

// GitHubBackend enumerates tags via GitHub's REST API and fetches tarball
// archives of matching tags (spec §4.8: "version list via REST
// matching-refs/tags; archive via archive/refs/tags/{tag}.tar.gz"). Link
// pagination for the tag listing follows RFC 5988 Link headers, parsed
// with github.com/peterhellberg/link.
type GitHubBackend struct {
	owner, repo string
	client      *http.Client
	downloader  Downloader
	cacheDir    string

	tagVersions map[string]version.Version
	current     version.Version
}

// NewGitHubBackend creates a GitHubBackend for "owner/repo", caching
// extracted archives under cacheDir.
func NewGitHubBackend(owner, repo, cacheDir string, client *http.Client) *GitHubBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &GitHubBackend{
		owner: owner, repo: repo, cacheDir: cacheDir,
		client: client, downloader: NewHTTPDownloader(client),
	}
}

type githubTag struct {
	Name string `json:"name"`
}

func (b *GitHubBackend) Update(ctx context.Context) error {
	b.tagVersions = make(map[string]version.Version)
	u := fmt.Sprintf("https://api.github.com/repos/%s/%s/tags?per_page=100", b.owner, b.repo)
	for u != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		var tags []githubTag
		err = json.NewDecoder(resp.Body).Decode(&tags)
		resp.Body.Close()
		if err != nil {
			return err
		}
		for _, t := range tags {
			if v, err := version.Parse(t.Name); err == nil {
				b.tagVersions[t.Name] = v
			}
		}
		u = ""
		for _, l := range link.ParseResponse(resp) {
			if l.Rel == "next" {
				u = l.URI
			}
		}
	}
	return nil
}

func (b *GitHubBackend) Versions(ctx context.Context) ([]version.Version, error) {
	if b.tagVersions == nil {
		if err := b.Update(ctx); err != nil {
			return nil, err
		}
	}
	return sortedVersions(b.tagVersions), nil
}

func (b *GitHubBackend) SetCurrentVersion(v version.Version) { b.current = v }

func (b *GitHubBackend) Dir(ctx context.Context) (string, error) {
	tag, ok := tagFor(b.tagVersions, b.current)
	if !ok {
		return "", &UnknownVersionError{Version: b.current.String()}
	}
	url := fmt.Sprintf("https://github.com/%s/%s/archive/refs/tags/%s.tar.gz", b.owner, b.repo, tag)
	destDir := filepath.Join(b.cacheDir, tag)
	archivePath := filepath.Join(b.cacheDir, tag+".tar.gz")
	return fetchAndExtractTarGz(ctx, b.downloader, url, archivePath, destDir)
}

func sortedVersions(m map[string]version.Version) []version.Version {
	out := make([]version.Version, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func tagFor(m map[string]version.Version, want version.Version) (string, bool) {
	for tag, v := range m {
		if v.Equal(want) {
			return tag, true
		}
	}
	return "", false
}
