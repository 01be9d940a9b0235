package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/peterhellberg/link"

	"github.com/luckboy/unlab-gpu/internal/version"
)

// GitLabBackend enumerates tags via a GitLab instance's REST API and
// fetches tarball archives (spec §4.8: "REST projects/{enc}/repository/tags
// then -/archive/{tag}/…").
type GitLabBackend struct {
	host, group, project string
	client                *http.Client
	downloader            Downloader
	cacheDir               string

	tagVersions map[string]version.Version
	current     version.Version
}

// NewGitLabBackend creates a GitLabBackend for host's "group/project".
func NewGitLabBackend(host, group, project, cacheDir string, client *http.Client) *GitLabBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &GitLabBackend{
		host: host, group: group, project: project, cacheDir: cacheDir,
		client: client, downloader: NewHTTPDownloader(client),
	}
}

type gitlabTag struct {
	Name string `json:"name"`
}

func (b *GitLabBackend) encodedProjectPath() string {
	return url.PathEscape(b.group + "/" + b.project)
}

func (b *GitLabBackend) Update(ctx context.Context) error {
	b.tagVersions = make(map[string]version.Version)
	u := fmt.Sprintf("https://%s/api/v4/projects/%s/repository/tags?per_page=100", b.host, b.encodedProjectPath())
	for u != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		var tags []gitlabTag
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

func (b *GitLabBackend) Versions(ctx context.Context) ([]version.Version, error) {
	if b.tagVersions == nil {
		if err := b.Update(ctx); err != nil {
			return nil, err
		}
	}
	return sortedVersions(b.tagVersions), nil
}

func (b *GitLabBackend) SetCurrentVersion(v version.Version) { b.current = v }

func (b *GitLabBackend) Dir(ctx context.Context) (string, error) {
	tag, ok := tagFor(b.tagVersions, b.current)
	if !ok {
		return "", &UnknownVersionError{Version: b.current.String()}
	}
	url := fmt.Sprintf("https://%s/%s/%s/-/archive/%s/%s-%s.tar.gz", b.host, b.group, b.project, tag, b.project, tag)
	destDir := filepath.Join(b.cacheDir, tag)
	archivePath := filepath.Join(b.cacheDir, tag+".tar.gz")
	return fetchAndExtractTarGz(ctx, b.downloader, url, archivePath, destDir)
}
