package docsource

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// RemoteSource reads documentation by browsing a remote cangjie-mcp
// server's /topics and /topics/{category}/{topic} endpoints. It only
// supports browsing operations: LoadAllDocuments is only needed while
// building an index, which happens on the server holding the git clone.
type RemoteSource struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string][]string // category -> topics, nil until first fetch
}

// NewRemoteSource targets the cangjie-mcp server at serverURL.
func NewRemoteSource(serverURL string) *RemoteSource {
	return &RemoteSource{
		baseURL:    strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type topicEntry struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type topicsResponse struct {
	Categories map[string][]topicEntry `json:"categories"`
}

type topicDocResponse struct {
	Content  string `json:"content"`
	FilePath string `json:"file_path"`
	Category string `json:"category"`
	Topic    string `json:"topic"`
	Title    string `json:"title"`
}

func (s *RemoteSource) fetchTopics() (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		return s.cache, nil
	}

	resp, err := s.httpClient.Get(s.baseURL + "/topics")
	if err != nil {
		return nil, errs.NewSourceUnavailable("fetching topics from remote documentation server", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewSourceUnavailable(fmt.Sprintf("remote documentation server returned status %d for /topics", resp.StatusCode), nil)
	}

	var parsed topicsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.NewBackendError("decoding /topics response", err)
	}
	names := make(map[string][]string, len(parsed.Categories))
	for cat, entries := range parsed.Categories {
		list := make([]string, 0, len(entries))
		for _, e := range entries {
			list = append(list, e.Name)
		}
		names[cat] = list
	}
	s.cache = names
	return s.cache, nil
}

// IsAvailable reports whether the remote server's /health endpoint
// responds with 200.
func (s *RemoteSource) IsAvailable() bool {
	resp, err := s.httpClient.Get(s.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Categories lists the categories reported by the remote server.
func (s *RemoteSource) Categories() ([]string, error) {
	topics, err := s.fetchTopics()
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(topics))
	for category := range topics {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories, nil
}

// TopicsInCategory lists the topics the remote server reports for
// category.
func (s *RemoteSource) TopicsInCategory(category string) ([]string, error) {
	topics, err := s.fetchTopics()
	if err != nil {
		return nil, err
	}
	found := append([]string(nil), topics[category]...)
	sort.Strings(found)
	return found, nil
}

// DocumentByTopic fetches topic from the remote server, resolving its
// category from the cached /topics listing when category is empty.
func (s *RemoteSource) DocumentByTopic(topic, category string) (*models.Document, error) {
	if category == "" {
		topics, err := s.fetchTopics()
		if err != nil {
			return nil, err
		}
		for cat, catTopics := range topics {
			for _, t := range catTopics {
				if t == topic {
					category = cat
					break
				}
			}
			if category != "" {
				break
			}
		}
		if category == "" {
			return nil, nil
		}
	}

	resp, err := s.httpClient.Get(s.baseURL + "/topics/" + category + "/" + topic)
	if err != nil {
		return nil, errs.NewSourceUnavailable("fetching topic from remote documentation server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewSourceUnavailable(fmt.Sprintf("remote documentation server returned status %d for topic %q", resp.StatusCode, topic), nil)
	}

	var parsed topicDocResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.NewBackendError("decoding topic response", err)
	}

	filePath := parsed.FilePath
	if filePath == "" {
		filePath = category + "/" + topic
	}
	resultCategory := parsed.Category
	if resultCategory == "" {
		resultCategory = category
	}
	resultTopic := parsed.Topic
	if resultTopic == "" {
		resultTopic = topic
	}

	return &models.Document{
		DocID: filePath,
		Text:  parsed.Content,
		Metadata: models.DocumentMetadata{
			FilePath: filePath,
			Category: resultCategory,
			Topic:    resultTopic,
			Title:    parsed.Title,
			Source:   "cangjie_docs",
		},
	}, nil
}

// LoadAllDocuments is not supported for remote sources: bulk loading is
// only needed during index building, which happens on the server side.
func (s *RemoteSource) LoadAllDocuments() ([]models.Document, error) {
	return nil, errs.NewConfigError("remote documentation sources do not support loading all documents; bulk loading happens on the server holding the git clone", nil)
}
