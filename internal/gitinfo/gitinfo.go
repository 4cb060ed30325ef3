// Package gitinfo resolves repository metadata used to stamp build records.
package gitinfo

import (
	"errors"

	git "github.com/go-git/go-git/v5"
)

// Info identifies the documentation tree's revision at build time.
type Info struct {
	Commit string
	Branch string
}

// ErrNotRepository indicates the directory is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Resolve returns HEAD commit and branch for the repository containing dir.
// Searches parent directories the way the git CLI does.
func Resolve(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, ErrNotRepository
		}
		return Info{}, err
	}

	head, err := repo.Head()
	if err != nil {
		return Info{}, err
	}

	info := Info{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	return info, nil
}
