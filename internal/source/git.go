package source

import (
	"context"
	"sort"

	vcs "github.com/Masterminds/vcs"

	"github.com/luckboy/unlab-gpu/internal/version"
)

// GitBackend fetches versions from a generic git remote's tags, using
// github.com/Masterminds/vcs for the clone/fetch/checkout plumbing
// (grounded on the teacher's vcs_repo.go wrapping of vcs.GitRepo).
type GitBackend struct {
	remote    string
	localPath string
	repo      vcs.Repo

	tagVersions map[string]version.Version
	current     version.Version
}

// NewGitBackend creates a GitBackend cloning remote into localPath on
// first use.
func NewGitBackend(remote, localPath string) (*GitBackend, error) {
	repo, err := vcs.NewGitRepo(remote, localPath)
	if err != nil {
		return nil, err
	}
	return &GitBackend{remote: remote, localPath: localPath, repo: repo}, nil
}

func (b *GitBackend) Update(ctx context.Context) error {
	if !b.repo.CheckLocal() {
		if err := b.repo.Get(); err != nil {
			return err
		}
	} else if err := b.repo.Update(); err != nil {
		return err
	}
	tags, err := b.repo.Tags()
	if err != nil {
		return err
	}
	b.tagVersions = make(map[string]version.Version, len(tags))
	for _, tag := range tags {
		v, err := version.Parse(tag)
		if err != nil {
			continue // non-version tags are not package versions
		}
		b.tagVersions[tag] = v
	}
	return nil
}

func (b *GitBackend) Versions(ctx context.Context) ([]version.Version, error) {
	if b.tagVersions == nil {
		if err := b.Update(ctx); err != nil {
			return nil, err
		}
	}
	out := make([]version.Version, 0, len(b.tagVersions))
	for _, v := range b.tagVersions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (b *GitBackend) SetCurrentVersion(v version.Version) { b.current = v }

func (b *GitBackend) Dir(ctx context.Context) (string, error) {
	for tag, v := range b.tagVersions {
		if v.Equal(b.current) {
			if err := b.repo.UpdateVersion(tag); err != nil {
				return "", err
			}
			return b.localPath, nil
		}
	}
	return "", &UnknownVersionError{Version: b.current.String()}
}

// UnknownVersionError reports a Dir()/SetCurrentVersion() call for a
// version absent from the backend's enumerated tag set.
type UnknownVersionError struct{ Version string }

func (e *UnknownVersionError) Error() string { return "unknown version " + e.Version }
