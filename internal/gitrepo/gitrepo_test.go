package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initLocalRepo builds a throwaway git repository on disk with one commit
// tagged "v1.0.0" on its default branch, so tests can exercise Manager
// without any network access.
func initLocalRepo(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "docs_repo")
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# docs\n"), 0o644); err != nil {
		t.Fatalf("write file failed: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit("initial commit", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := repo.CreateTag("v1.0.0", hash, nil); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	return dir
}

func TestIsClonedFalseForMissingDir(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing"), "https://example.invalid/repo.git")
	if m.IsCloned() {
		t.Fatal("expected IsCloned false for a nonexistent directory")
	}
}

func TestIsClonedTrueAfterInit(t *testing.T) {
	dir := initLocalRepo(t)
	m := New(dir, "")
	if !m.IsCloned() {
		t.Fatal("expected IsCloned true for an initialized repository")
	}
}

func TestListTagsIncludesCreatedTag(t *testing.T) {
	dir := initLocalRepo(t)
	m := New(dir, "")
	tags, err := m.ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 1 || tags[0] != "v1.0.0" {
		t.Fatalf("expected [v1.0.0], got %v", tags)
	}
}

func TestCommitForVersionResolvesTag(t *testing.T) {
	dir := initLocalRepo(t)
	m := New(dir, "")
	repo, err := m.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	commit, err := m.CommitForVersion(repo, "v1.0.0")
	if err != nil {
		t.Fatalf("CommitForVersion failed: %v", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if _, err := tree.File("README.md"); err != nil {
		t.Fatalf("expected README.md in resolved tree: %v", err)
	}
}

func TestCommitForVersionUnknownVersionErrors(t *testing.T) {
	dir := initLocalRepo(t)
	m := New(dir, "")
	repo, err := m.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := m.CommitForVersion(repo, "does-not-exist"); err == nil {
		t.Fatal("expected error for unresolvable version")
	}
}

func TestCurrentVersionReturnsTagName(t *testing.T) {
	dir := initLocalRepo(t)
	m := New(dir, "")
	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != "v1.0.0" {
		t.Fatalf("expected v1.0.0, got %q", version)
	}
}
