package docsource

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/gitrepo"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// GitSource reads documentation pages directly out of a pinned commit's
// tree, without checking the working tree out to that version. This lets
// the server hold several versions of the corpus open concurrently.
type GitSource struct {
	version string
	lang    string
	docsDir string // e.g. "docs/dev-guide/source_zh_cn"

	docsTree *object.Tree // nil if the docs subtree does not exist at this commit
}

// NewGitSource resolves version in the repository managed by mgr and
// caches its tree. It returns a ConfigError-tagged error if version
// cannot be resolved to a commit.
func NewGitSource(repo *git.Repository, mgr *gitrepo.Manager, version, lang string) (*GitSource, error) {
	commit, err := mgr.CommitForVersion(repo, version)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errs.NewBackendError("reading tree for documentation repository version \""+version+"\"", err)
	}

	docsDir := "docs/dev-guide/" + config.DocsSourceSubdir(lang)
	docsTree, _ := tree.Tree(docsDir) // absence is not an error; Categories/etc. report empty

	return &GitSource{version: version, lang: lang, docsDir: docsDir, docsTree: docsTree}, nil
}

// IsAvailable always returns true: construction already proved the
// version resolves to a commit.
func (s *GitSource) IsAvailable() bool { return true }

// Categories lists the top-level category directories.
func (s *GitSource) Categories() ([]string, error) {
	if s.docsTree == nil {
		return nil, nil
	}
	var categories []string
	for _, entry := range s.docsTree.Entries {
		if entry.Mode == filemode.Dir && !strings.HasPrefix(entry.Name, ".") && !strings.HasPrefix(entry.Name, "_") {
			categories = append(categories, entry.Name)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// TopicsInCategory lists topic names (file stems) within category,
// including those nested in subdirectories.
func (s *GitSource) TopicsInCategory(category string) ([]string, error) {
	catTree, ok := s.categoryTree(category)
	if !ok {
		return nil, nil
	}

	var topics []string
	err := catTree.Files().ForEach(func(f *object.File) error {
		if strings.HasSuffix(f.Name, ".md") {
			topics = append(topics, strings.TrimSuffix(baseName(f.Name), ".md"))
		}
		return nil
	})
	if err != nil {
		return nil, errs.NewBackendError("walking category \""+category+"\" in documentation repository", err)
	}
	sort.Strings(topics)
	return topics, nil
}

// DocumentByTopic finds the document named topic, optionally narrowed to
// one category, and returns (nil, nil) if it is not present.
func (s *GitSource) DocumentByTopic(topic, category string) (*models.Document, error) {
	if s.docsTree == nil {
		return nil, nil
	}

	filename := topic + ".md"

	search := func(catName string, catTree *object.Tree) (*models.Document, error) {
		var found *object.File
		var relPath string
		err := catTree.Files().ForEach(func(f *object.File) error {
			if found != nil {
				return nil
			}
			if baseName(f.Name) == filename {
				found = f
				relPath = catName + "/" + f.Name
			}
			return nil
		})
		if err != nil {
			return nil, errs.NewBackendError("searching category \""+catName+"\" for topic \""+topic+"\"", err)
		}
		if found == nil {
			return nil, nil
		}
		content, err := found.Contents()
		if err != nil {
			return nil, errs.NewBackendError("reading \""+relPath+"\" from documentation repository", err)
		}
		return buildDocument(content, relPath, catName, topic), nil
	}

	if category != "" {
		catTree, ok := s.categoryTree(category)
		if !ok {
			return nil, nil
		}
		return search(category, catTree)
	}

	for _, entry := range s.docsTree.Entries {
		if entry.Mode != filemode.Dir || strings.HasPrefix(entry.Name, ".") || strings.HasPrefix(entry.Name, "_") {
			continue
		}
		catTree, err := s.docsTree.Tree(entry.Name)
		if err != nil {
			continue
		}
		doc, err := search(entry.Name, catTree)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}
	return nil, nil
}

// LoadAllDocuments loads every document in the corpus, used to build an
// index from scratch.
func (s *GitSource) LoadAllDocuments() ([]models.Document, error) {
	if s.docsTree == nil {
		return nil, nil
	}

	var documents []models.Document
	for _, entry := range s.docsTree.Entries {
		if entry.Mode != filemode.Dir || strings.HasPrefix(entry.Name, ".") || strings.HasPrefix(entry.Name, "_") {
			continue
		}
		category := entry.Name
		catTree, err := s.docsTree.Tree(category)
		if err != nil {
			continue
		}

		err = catTree.Files().ForEach(func(f *object.File) error {
			if !strings.HasSuffix(f.Name, ".md") {
				return nil
			}
			content, cerr := f.Contents()
			if cerr != nil {
				return nil // a single unreadable blob does not abort the load
			}
			if strings.TrimSpace(content) == "" {
				return nil
			}
			topic := strings.TrimSuffix(baseName(f.Name), ".md")
			relPath := category + "/" + f.Name
			documents = append(documents, *buildDocument(content, relPath, category, topic))
			return nil
		})
		if err != nil {
			return nil, errs.NewBackendError("walking category \""+category+"\" in documentation repository", err)
		}
	}
	return documents, nil
}

func (s *GitSource) categoryTree(category string) (*object.Tree, bool) {
	if s.docsTree == nil {
		return nil, false
	}
	catTree, err := s.docsTree.Tree(category)
	if err != nil {
		return nil, false
	}
	return catTree, true
}

func buildDocument(content, relativePath, category, topic string) *models.Document {
	title := extractTitle(content)
	codeBlocks := extractCodeBlocks(content)
	return &models.Document{
		DocID: relativePath,
		Text:  content,
		Metadata: models.DocumentMetadata{
			FilePath:       relativePath,
			Category:       category,
			Topic:          topic,
			Title:          title,
			CodeBlockCount: len(codeBlocks),
			Source:         "cangjie_docs",
		},
	}
}

func baseName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
