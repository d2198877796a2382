// Package gitrepo manages the single shared clone of the documentation
// repository: cloning, fetching, listing tags, and resolving a version
// string (tag, branch, or "latest") to a commit without necessarily
// checking it out.
package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
)

// Manager owns one clone of the documentation repository on disk.
type Manager struct {
	dir     string
	repoURL string
}

// New returns a Manager for the clone at dir, cloning from repoURL when
// needed.
func New(dir, repoURL string) *Manager {
	return &Manager{dir: dir, repoURL: repoURL}
}

// Dir is the clone's directory on disk.
func (m *Manager) Dir() string { return m.dir }

// IsCloned reports whether a git repository already exists at dir.
func (m *Manager) IsCloned() bool {
	info, err := os.Stat(filepath.Join(m.dir, ".git"))
	return err == nil && info != nil
}

// Clone clones repoURL into dir, replacing anything already there.
func (m *Manager) Clone(ctx context.Context) (*git.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(m.dir), 0o755); err != nil {
		return nil, errs.NewSourceUnavailable("creating parent directory for docs clone", err)
	}
	repo, err := git.PlainCloneContext(ctx, m.dir, false, &git.CloneOptions{
		URL:  m.repoURL,
		Tags: git.AllTags,
	})
	if err != nil {
		return nil, errs.NewSourceUnavailable("cloning documentation repository", err)
	}
	return repo, nil
}

// Open opens the existing clone without cloning it.
func (m *Manager) Open() (*git.Repository, error) {
	repo, err := git.PlainOpen(m.dir)
	if err != nil {
		return nil, errs.NewSourceUnavailable("opening documentation repository clone", err)
	}
	return repo, nil
}

// EnsureCloned opens the clone if present, cloning it first otherwise.
func (m *Manager) EnsureCloned(ctx context.Context) (*git.Repository, error) {
	if m.IsCloned() {
		return m.Open()
	}
	return m.Clone(ctx)
}

// Fetch fetches the latest commits and tags from origin. A nil error is
// also returned when the remote reports nothing new.
func (m *Manager) Fetch(ctx context.Context) error {
	repo, err := m.EnsureCloned(ctx)
	if err != nil {
		return err
	}
	err = repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin", Tags: git.AllTags})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return errs.NewSourceUnavailable("fetching documentation repository updates", err)
	}
	return nil
}

// ListTags lists every tag name in the repository, sorted in descending
// (newest-looking) order.
func (m *Manager) ListTags(ctx context.Context) ([]string, error) {
	repo, err := m.EnsureCloned(ctx)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Tags()
	if err != nil {
		return nil, errs.NewBackendError("listing documentation repository tags", err)
	}
	defer iter.Close()

	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, errs.NewBackendError("iterating documentation repository tags", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(tags)))
	return tags, nil
}

// CurrentVersion reports the tag name HEAD currently points at, or the
// active branch name if HEAD is not on a tag. It returns ("", nil) when
// neither can be determined (detached head on an untagged commit).
func (m *Manager) CurrentVersion() (string, error) {
	repo, err := m.Open()
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", errs.NewBackendError("reading documentation repository HEAD", err)
	}

	if tags, terr := repo.Tags(); terr == nil {
		defer tags.Close()
		var matched string
		_ = tags.ForEach(func(ref *plumbing.Reference) error {
			if matched != "" {
				return nil
			}
			if hash, herr := resolveTagCommitHash(repo, ref); herr == nil && hash == head.Hash() {
				matched = ref.Name().Short()
			}
			return nil
		})
		if matched != "" {
			return matched, nil
		}
	}

	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "", nil
}

// Checkout checks the working tree out to version. "latest" checks out
// main, falling back to master when main does not exist.
func (m *Manager) Checkout(ctx context.Context, version string) error {
	repo, err := m.EnsureCloned(ctx)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errs.NewBackendError("opening documentation repository worktree", err)
	}

	if version == "latest" {
		if checkoutErr := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("main")}); checkoutErr == nil {
			return nil
		}
		if checkoutErr := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("master")}); checkoutErr == nil {
			return nil
		}
		return errs.NewConfigError("neither main nor master branch exists in documentation repository", nil)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(version))
	if err != nil {
		return errs.NewConfigError("documentation repository version \""+version+"\" not found", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		return errs.NewBackendError("checking out documentation repository version \""+version+"\"", err)
	}
	return nil
}

// CommitForVersion resolves version (a tag, branch, commit, or "latest")
// to a commit object without touching the working tree, so a caller can
// read file contents directly from the commit's tree.
func (m *Manager) CommitForVersion(repo *git.Repository, version string) (*object.Commit, error) {
	target := version
	if target == "latest" {
		if ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true); err == nil {
			target = ref.Hash().String()
		} else if ref, err := repo.Reference(plumbing.NewBranchReferenceName("master"), true); err == nil {
			target = ref.Hash().String()
		} else {
			return nil, errs.NewConfigError("neither main nor master branch exists in documentation repository", nil)
		}
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(target))
	if err != nil {
		return nil, errs.NewConfigError("documentation repository version \""+version+"\" not found", err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, errs.NewBackendError("reading commit for documentation repository version \""+version+"\"", err)
	}
	return commit, nil
}

func resolveTagCommitHash(repo *git.Repository, ref *plumbing.Reference) (plumbing.Hash, error) {
	if tagObj, err := repo.TagObject(ref.Hash()); err == nil {
		commit, cerr := tagObj.Commit()
		if cerr != nil {
			return plumbing.ZeroHash, cerr
		}
		return commit.Hash, nil
	}
	return ref.Hash(), nil
}
