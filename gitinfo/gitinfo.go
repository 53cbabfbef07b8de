// Package gitinfo reports repository state for project roots served by the
// gateway: current branch, pending changes, branches, recent commits, and
// remote ahead/behind counts.
package gitinfo

import (
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/teranos/langgate/errors"
)

const defaultRemoteName = "origin"

// Status summarizes a working tree.
type Status struct {
	IsRepo        bool   `json:"is_repo"`
	CurrentBranch string `json:"current_branch,omitempty"`
	HasChanges    bool   `json:"has_changes"`
	Ahead         int    `json:"ahead"`
	Behind        int    `json:"behind"`
}

// Branch is one local or remote-tracking branch.
type Branch struct {
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current"`
	IsRemote  bool   `json:"is_remote"`
	CommitID  string `json:"commit_id"`
}

// Commit is one entry of the repository log.
type Commit struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"short_id"`
	Message     string    `json:"message"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	Timestamp   int64     `json:"timestamp"`
	Date        time.Time `json:"date"`
}

// RemoteStatus reports the divergence from the tracking branch on origin.
type RemoteStatus struct {
	RemoteName string `json:"remote_name"`
	RemoteURL  string `json:"remote_url,omitempty"`
	HasRemote  bool   `json:"has_remote"`
	Ahead      int    `json:"ahead"`
	Behind     int    `json:"behind"`
}

// IsRepository reports whether path opens as a git repository.
func IsRepository(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// GetStatus returns the working-tree summary. A path that is not a repository
// yields IsRepo=false with no error.
func GetStatus(path string) (*Status, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return &Status{IsRepo: false}, nil
	}

	status := &Status{IsRepo: true}

	head, err := repo.Head()
	if err != nil {
		// Freshly initialized repo with no commits; nothing more to report
		return status, nil
	}
	if head.Name().IsBranch() {
		status.CurrentBranch = head.Name().Short()
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open worktree")
	}
	wtStatus, err := worktree.Status()
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute worktree status")
	}
	status.HasChanges = !wtStatus.IsClean()

	if ahead, behind, err := remoteDivergence(repo, head); err == nil {
		status.Ahead = ahead
		status.Behind = behind
	}

	return status, nil
}

// GetBranches lists local branches then remote-tracking branches, skipping
// symbolic refs like origin/HEAD.
func GetBranches(path string) ([]Branch, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "not a git repository: %s", path)
	}

	var current string
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		current = head.Name().Short()
	}

	var branches []Branch

	locals, err := repo.Branches()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list branches")
	}
	err = locals.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		branches = append(branches, Branch{
			Name:      name,
			IsCurrent: name == current,
			CommitID:  ref.Hash().String(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate branches")
	}

	refs, err := repo.References()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list references")
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsRemote() || strings.HasSuffix(ref.Name().Short(), "/HEAD") {
			return nil
		}
		branches = append(branches, Branch{
			Name:     ref.Name().Short(),
			IsRemote: true,
			CommitID: ref.Hash().String(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate remote references")
	}

	return branches, nil
}

// GetCommits returns up to limit commits from HEAD, newest first. A limit of
// zero or less means 50.
func GetCommits(path string, limit int) ([]Commit, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "not a git repository: %s", path)
	}
	if limit <= 0 {
		limit = 50
	}

	head, err := repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "repository has no HEAD")
	}

	iter, err := repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read log")
	}

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= limit {
			return storer.ErrStop
		}
		id := c.Hash.String()
		commits = append(commits, Commit{
			ID:          id,
			ShortID:     id[:7],
			Message:     c.Message,
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			Timestamp:   c.Author.When.Unix(),
			Date:        c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk commits")
	}

	return commits, nil
}

// GetRemoteStatus reports divergence from origin's tracking branch. A missing
// remote yields HasRemote=false with no error.
func GetRemoteStatus(path string) (*RemoteStatus, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "not a git repository: %s", path)
	}

	result := &RemoteStatus{RemoteName: defaultRemoteName}

	remote, err := repo.Remote(defaultRemoteName)
	if err != nil {
		return result, nil
	}
	result.HasRemote = true
	if urls := remote.Config().URLs; len(urls) > 0 {
		result.RemoteURL = urls[0]
	}

	head, err := repo.Head()
	if err != nil {
		return result, nil
	}

	ahead, behind, err := remoteDivergence(repo, head)
	if err != nil {
		return result, nil
	}
	result.Ahead = ahead
	result.Behind = behind

	return result, nil
}

// remoteDivergence computes the graph-based ahead/behind counts between the
// local head and its tracking branch on origin. A missing tracking branch
// counts as no divergence.
func remoteDivergence(repo *git.Repository, head *plumbing.Reference) (int, int, error) {
	if !head.Name().IsBranch() {
		return 0, 0, nil
	}

	trackingName := plumbing.NewRemoteReferenceName(defaultRemoteName, head.Name().Short())
	tracking, err := repo.Reference(trackingName, true)
	if err != nil {
		return 0, 0, nil
	}

	local, err := repo.CommitObject(head.Hash())
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to resolve local head commit")
	}
	remote, err := repo.CommitObject(tracking.Hash())
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to resolve tracking commit")
	}

	return aheadBehind(local, remote)
}

// aheadBehind walks the commit graph from each side down to the merge base:
// commits reachable only from local are ahead, only from remote are behind.
func aheadBehind(local, remote *object.Commit) (int, int, error) {
	if local.Hash == remote.Hash {
		return 0, 0, nil
	}

	bases, err := local.MergeBase(remote)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to find merge base")
	}
	stop := make([]plumbing.Hash, 0, len(bases))
	for _, base := range bases {
		stop = append(stop, base.Hash)
	}

	ahead, err := countReachable(local, stop)
	if err != nil {
		return 0, 0, err
	}
	behind, err := countReachable(remote, stop)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

// countReachable counts commits reachable from c, pruning at the stop hashes.
func countReachable(c *object.Commit, stop []plumbing.Hash) (int, error) {
	count := 0
	iter := object.NewCommitPreorderIter(c, nil, stop)
	err := iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to walk commit graph")
	}
	return count, nil
}
