package docsource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cangjie-tools/cangjie-mcp/internal/gitrepo"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

func buildDocsRepo(t *testing.T) (*git.Repository, *gitrepo.Manager) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "docs_repo")
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}

	files := map[string]string{
		"docs/dev-guide/source_zh_cn/syntax/functions.md":        "# 函数\n函数使用 func 关键字声明。\n```cangjie\nfunc main() {}\n```\n",
		"docs/dev-guide/source_zh_cn/syntax/nested/pattern.md":   "# 模式匹配\nmatch 表达式用于模式匹配。\n",
		"docs/dev-guide/source_zh_cn/types/inference.md":         "# 类型推断\n编译器自动推导类型。\n",
		"README.md": "repo readme, not under docs",
	}
	for path, content := range files {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit("docs", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := repo.CreateTag("v1.0.0", hash, nil); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	return repo, gitrepo.New(dir, "")
}

func TestGitSourceCategories(t *testing.T) {
	repo, mgr := buildDocsRepo(t)
	src, err := NewGitSource(repo, mgr, "v1.0.0", "zh")
	if err != nil {
		t.Fatalf("NewGitSource failed: %v", err)
	}

	categories, err := src.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(categories) != 2 || categories[0] != "syntax" || categories[1] != "types" {
		t.Fatalf("expected [syntax types], got %v", categories)
	}
}

func TestGitSourceTopicsInCategoryIncludesNested(t *testing.T) {
	repo, mgr := buildDocsRepo(t)
	src, err := NewGitSource(repo, mgr, "v1.0.0", "zh")
	if err != nil {
		t.Fatalf("NewGitSource failed: %v", err)
	}

	topics, err := src.TopicsInCategory("syntax")
	if err != nil {
		t.Fatalf("TopicsInCategory failed: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %v", topics)
	}
}

func TestGitSourceDocumentByTopicFindsNested(t *testing.T) {
	repo, mgr := buildDocsRepo(t)
	src, err := NewGitSource(repo, mgr, "v1.0.0", "zh")
	if err != nil {
		t.Fatalf("NewGitSource failed: %v", err)
	}

	doc, err := src.DocumentByTopic("pattern", "")
	if err != nil {
		t.Fatalf("DocumentByTopic failed: %v", err)
	}
	if doc == nil {
		t.Fatal("expected to find pattern.md")
	}
	if doc.Metadata.Category != "syntax" {
		t.Errorf("expected category syntax, got %s", doc.Metadata.Category)
	}
	if doc.Metadata.Title != "模式匹配" {
		t.Errorf("expected title 模式匹配, got %q", doc.Metadata.Title)
	}
}

func TestGitSourceDocumentByTopicMissingReturnsNil(t *testing.T) {
	repo, mgr := buildDocsRepo(t)
	src, err := NewGitSource(repo, mgr, "v1.0.0", "zh")
	if err != nil {
		t.Fatalf("NewGitSource failed: %v", err)
	}

	doc, err := src.DocumentByTopic("does-not-exist", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %+v", doc)
	}
}

func TestGitSourceLoadAllDocumentsCountsCodeBlocks(t *testing.T) {
	repo, mgr := buildDocsRepo(t)
	src, err := NewGitSource(repo, mgr, "v1.0.0", "zh")
	if err != nil {
		t.Fatalf("NewGitSource failed: %v", err)
	}

	docs, err := src.LoadAllDocuments()
	if err != nil {
		t.Fatalf("LoadAllDocuments failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents (README.md excluded), got %d", len(docs))
	}

	var functionsDoc *models.Document
	for i := range docs {
		if docs[i].Metadata.Topic == "functions" {
			functionsDoc = &docs[i]
		}
	}
	if functionsDoc == nil {
		t.Fatal("expected to find functions document")
	}
	if functionsDoc.Metadata.CodeBlockCount != 1 {
		t.Errorf("expected 1 code block, got %d", functionsDoc.Metadata.CodeBlockCount)
	}
}

func TestGitSourceUnknownVersionErrors(t *testing.T) {
	repo, mgr := buildDocsRepo(t)
	if _, err := NewGitSource(repo, mgr, "does-not-exist", "zh"); err == nil {
		t.Fatal("expected error for unresolvable version")
	}
}

func TestGitSourceEnglishLangUsesSourceEnDir(t *testing.T) {
	repo, mgr := buildDocsRepo(t)
	src, err := NewGitSource(repo, mgr, "v1.0.0", "en")
	if err != nil {
		t.Fatalf("NewGitSource failed: %v", err)
	}
	categories, err := src.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if categories != nil {
		t.Fatalf("expected no categories under source_en (not present in fixture), got %v", categories)
	}
}
