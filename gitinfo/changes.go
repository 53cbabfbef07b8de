package gitinfo

import (
	"github.com/go-git/go-git/v5"

	"github.com/teranos/langgate/errors"
)

// FileStatus is one changed path in the working tree or index.
type FileStatus struct {
	Path     string `json:"path"`
	Status   string `json:"status"` // "added", "modified", "deleted", "renamed", "untracked"
	Staged   bool   `json:"staged"`
	Unstaged bool   `json:"unstaged"`
}

// Changes splits pending changes into staged and unstaged sets. A path with
// both index and worktree changes appears in both.
type Changes struct {
	Staged   []FileStatus `json:"staged"`
	Unstaged []FileStatus `json:"unstaged"`
}

// GetChanges lists the repository's pending changes.
func GetChanges(path string) (*Changes, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "not a git repository: %s", path)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open worktree")
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute worktree status")
	}

	changes := &Changes{}
	for filePath, fileStatus := range status {
		staged := isChangeCode(fileStatus.Staging)
		unstaged := isChangeCode(fileStatus.Worktree) || fileStatus.Worktree == git.Untracked

		if staged {
			changes.Staged = append(changes.Staged, FileStatus{
				Path:     filePath,
				Status:   statusString(fileStatus.Staging),
				Staged:   true,
				Unstaged: unstaged,
			})
		}
		if unstaged {
			changes.Unstaged = append(changes.Unstaged, FileStatus{
				Path:     filePath,
				Status:   statusString(fileStatus.Worktree),
				Staged:   staged,
				Unstaged: true,
			})
		}
	}

	return changes, nil
}

func isChangeCode(code git.StatusCode) bool {
	switch code {
	case git.Added, git.Modified, git.Deleted, git.Renamed, git.Copied, git.UpdatedButUnmerged:
		return true
	default:
		return false
	}
}

func statusString(code git.StatusCode) string {
	switch code {
	case git.Added:
		return "added"
	case git.Modified:
		return "modified"
	case git.Deleted:
		return "deleted"
	case git.Renamed:
		return "renamed"
	case git.Untracked:
		return "untracked"
	default:
		return "modified"
	}
}
