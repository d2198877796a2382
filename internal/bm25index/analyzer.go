package bm25index

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/cangjie-tools/cangjie-mcp/internal/textutil"
)

// analyzerName is registered once per process and referenced by name from
// index mappings; bleve's registry is the idiomatic way to plug in a custom
// tokenizer without forking the analysis pipeline.
const (
	analyzerName  = "cangjie_mixed"
	tokenizerName = "cangjie_mixed_tokenizer"
)

func init() {
	err := registry.RegisterTokenizer(tokenizerName, func(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
		return mixedTokenizer{}, nil
	})
	if err != nil {
		panic(err)
	}
}

// mixedTokenizer adapts textutil.Tokenize, the same tokenizer the hybrid
// retriever uses to score query tokens, into bleve's analysis pipeline so
// indexing and querying always segment CJK/Latin text identically.
type mixedTokenizer struct{}

func (mixedTokenizer) Tokenize(input []byte) analysis.TokenStream {
	words := textutil.Tokenize(string(input))
	stream := make(analysis.TokenStream, 0, len(words))
	for i, w := range words {
		stream = append(stream, &analysis.Token{
			Term:     []byte(w),
			Position: i + 1,
			Type:     analysis.Ideographic,
		})
	}
	return stream
}

// buildIndexMapping constructs the document mapping used for every BM25
// index: a "text" field analyzed with the mixed tokenizer for full-text
// search, and an unanalyzed "category" keyword field for exact filtering.
func buildIndexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":      "custom",
		"tokenizer": tokenizerName,
	}); err != nil {
		panic(err)
	}
	m.DefaultAnalyzer = analyzerName

	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = analyzerName
	text.Store = true
	doc.AddFieldMappingsAt("text", text)

	for _, field := range []string{"file_path", "category", "topic", "title"} {
		keyword := bleve.NewTextFieldMapping()
		keyword.Analyzer = "keyword"
		keyword.Store = true
		doc.AddFieldMappingsAt(field, keyword)
	}

	hasCode := bleve.NewBooleanFieldMapping()
	hasCode.Store = true
	doc.AddFieldMappingsAt("has_code", hasCode)

	m.AddDocumentMapping("_default", doc)
	return m
}
