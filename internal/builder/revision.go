package builder

import (
	"errors"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

const revisionLen = 12

// sourceRevision returns the abbreviated HEAD commit of the git repository
// containing dir. It returns an empty string without error when dir is not
// in a repository or the repository has no commits yet.
func sourceRevision(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	rev := head.Hash().String()
	if len(rev) > revisionLen {
		rev = rev[:revisionLen]
	}
	return rev, nil
}
