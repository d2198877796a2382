package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/lspclient"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// docTools are the documentation-query tool definitions, identical for
// every peer.
func docTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "search_docs",
			Description: "Search the Cangjie documentation using a natural-language query. Returns ranked passages with file location, category, topic, and relevance score.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Natural language search query.",
					},
					"top_k": map[string]interface{}{
						"type":        "number",
						"description": "Maximum number of results to return (default 5).",
						"default":     5,
					},
					"offset": map[string]interface{}{
						"type":        "number",
						"description": "Number of leading results to skip, for pagination (default 0).",
						"default":     0,
					},
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Restrict results to this documentation category.",
					},
					"extract_code": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return fenced code blocks parsed out of each result (default false).",
						"default":     false,
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "get_topic",
			Description: "Fetch one documentation page by its topic name. If the topic isn't found, returns similarly-named topics as a suggestion.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"topic": map[string]interface{}{
						"type":        "string",
						"description": "Topic name (file stem) to fetch.",
					},
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Restrict the lookup (and suggestions) to this category.",
					},
				},
				Required: []string{"topic"},
			},
		},
		{
			Name:        "list_topics",
			Description: "List documentation topics, optionally restricted to one category. Omit category to list every category's topics.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Category to list topics for.",
					},
				},
			},
		},
	}
}

func positionSchema() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the source file.",
		},
		"line": map[string]interface{}{
			"type":        "number",
			"description": "Zero-based line number.",
		},
		"character": map[string]interface{}{
			"type":        "number",
			"description": "Zero-based column within the line.",
		},
	}
}

// lspTools are the LSP tool definitions, one per Client operation.
func lspTools() []mcp.Tool {
	pos := positionSchema()
	return []mcp.Tool{
		{
			Name:        "lsp_definition",
			Description: "Resolve the definition location of the symbol at a source position.",
			InputSchema: mcp.ToolInputSchema{Type: "object", Properties: pos, Required: []string{"path", "line", "character"}},
		},
		{
			Name:        "lsp_references",
			Description: "Find every reference to the symbol at a source position.",
			InputSchema: mcp.ToolInputSchema{Type: "object", Properties: pos, Required: []string{"path", "line", "character"}},
		},
		{
			Name:        "lsp_hover",
			Description: "Get hover information (type, documentation) for the symbol at a source position.",
			InputSchema: mcp.ToolInputSchema{Type: "object", Properties: pos, Required: []string{"path", "line", "character"}},
		},
		{
			Name:        "lsp_completion",
			Description: "Get completion suggestions at a source position.",
			InputSchema: mcp.ToolInputSchema{Type: "object", Properties: pos, Required: []string{"path", "line", "character"}},
		},
		{
			Name:        "lsp_symbols",
			Description: "List the document symbols (functions, classes, etc.) declared in a source file.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the source file.",
					},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "lsp_diagnostics",
			Description: "Get the diagnostics (errors, warnings) currently published for a source file.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the source file.",
					},
					"timeout_ms": map[string]interface{}{
						"type":        "number",
						"description": "Milliseconds to wait for diagnostics before returning empty (default 3000).",
						"default":     3000,
					},
				},
				Required: []string{"path"},
			},
		},
	}
}

// handleToolCall routes one tool call to its handler for peer.
func (p *Peer) handleToolCall(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	switch name {
	case "search_docs":
		return p.handleSearchDocs(ctx, args)
	case "get_topic":
		return p.handleGetTopic(args)
	case "list_topics":
		return p.handleListTopics(args)
	case "lsp_definition":
		return p.handleLSPPosition(ctx, args, func(c *lspclient.Client, path string, line, ch int) (any, error) {
			return c.Definition(ctx, path, line, ch)
		})
	case "lsp_references":
		return p.handleLSPPosition(ctx, args, func(c *lspclient.Client, path string, line, ch int) (any, error) {
			return c.References(ctx, path, line, ch)
		})
	case "lsp_hover":
		return p.handleLSPPosition(ctx, args, func(c *lspclient.Client, path string, line, ch int) (any, error) {
			return c.Hover(ctx, path, line, ch)
		})
	case "lsp_completion":
		return p.handleLSPPosition(ctx, args, func(c *lspclient.Client, path string, line, ch int) (any, error) {
			return c.Completion(ctx, path, line, ch)
		})
	case "lsp_symbols":
		return p.handleLSPSymbols(ctx, args)
	case "lsp_diagnostics":
		return p.handleLSPDiagnostics(args)
	default:
		return errorResult(fmt.Sprintf("unknown tool: %s", name)), nil
	}
}

func (p *Peer) handleSearchDocs(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return errorResult("query is required and must be a string"), nil
	}
	category, _ := args["category"].(string)
	extractCode, _ := args["extract_code"].(bool)

	topK := intArg(args, "top_k", 5)
	offset := intArg(args, "offset", 0)

	results, err := p.retriever.Query(ctx, query, offset+topK, category, true)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil
	}
	if offset >= len(results) {
		results = nil
	} else {
		end := offset + topK
		if end > len(results) {
			end = len(results)
		}
		results = results[offset:end]
	}

	type resultOut struct {
		models.SearchResult
		CodeBlocks []string `json:"code_blocks,omitempty"`
	}
	out := make([]resultOut, 0, len(results))
	for _, r := range results {
		ro := resultOut{SearchResult: r}
		if extractCode {
			ro.CodeBlocks = extractCodeBlocks(r.Text)
		}
		out = append(out, ro)
	}

	return successResult(map[string]interface{}{
		"results": out,
		"total":   len(out),
	}), nil
}

func (p *Peer) handleGetTopic(args map[string]interface{}) (*mcp.CallToolResult, error) {
	topic, _ := args["topic"].(string)
	if topic == "" {
		return errorResult("topic is required and must be a string"), nil
	}
	category, _ := args["category"].(string)

	doc, err := p.docs.DocumentByTopic(topic, category)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to fetch topic: %v", err)), nil
	}
	if doc != nil {
		return successResult(doc), nil
	}

	known, err := p.knownTopics(category)
	if err != nil {
		return errorResult(fmt.Sprintf("topic %q not found", topic)), nil
	}
	suggestions := suggestTopics(topic, known, 5)
	notFound := errs.NewNotFound(fmt.Sprintf("topic %q not found", topic), nil)
	return successResult(map[string]interface{}{
		"error":       notFound.Error(),
		"suggestions": suggestions,
	}), nil
}

func (p *Peer) handleListTopics(args map[string]interface{}) (*mcp.CallToolResult, error) {
	category, _ := args["category"].(string)

	if category != "" {
		topics, err := p.docs.TopicsInCategory(category)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to list topics: %v", err)), nil
		}
		return successResult(map[string]interface{}{category: topics}), nil
	}

	categories, err := p.docs.Categories()
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list categories: %v", err)), nil
	}
	out := make(map[string][]string, len(categories))
	for _, cat := range categories {
		topics, err := p.docs.TopicsInCategory(cat)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to list topics for %s: %v", cat, err)), nil
		}
		out[cat] = topics
	}
	return successResult(out), nil
}

// knownTopics gathers every topic name visible to get_topic's did-you-mean
// suggestions: every topic in category, or across every category if none
// was given.
func (p *Peer) knownTopics(category string) ([]string, error) {
	var categories []string
	if category != "" {
		categories = []string{category}
	} else {
		cats, err := p.docs.Categories()
		if err != nil {
			return nil, err
		}
		categories = cats
	}

	var topics []string
	for _, cat := range categories {
		t, err := p.docs.TopicsInCategory(cat)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t...)
	}
	return topics, nil
}

func (p *Peer) handleLSPPosition(_ context.Context, args map[string]interface{}, call func(*lspclient.Client, string, int, int) (any, error)) (*mcp.CallToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path is required and must be a string"), nil
	}
	line := intArg(args, "line", -1)
	character := intArg(args, "character", -1)
	if line < 0 || character < 0 {
		return errorResult("line and character are required and must be non-negative numbers"), nil
	}

	client, err := p.requireLSP()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	result, err := call(client, path, line, character)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return successResult(result), nil
}

func (p *Peer) handleLSPSymbols(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path is required and must be a string"), nil
	}
	client, err := p.requireLSP()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	symbols, err := client.DocumentSymbol(ctx, path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return successResult(symbols), nil
}

func (p *Peer) handleLSPDiagnostics(args map[string]interface{}) (*mcp.CallToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path is required and must be a string"), nil
	}
	timeoutMS := intArg(args, "timeout_ms", 3000)

	client, err := p.requireLSP()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	diags, err := client.Diagnostics(path, time.Duration(timeoutMS)*time.Millisecond)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return successResult(diags), nil
}

// Helper functions

func intArg(args map[string]interface{}, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

func successResult(data interface{}) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(data, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(jsonData)},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf("Error: %s", message)},
		},
		IsError: true,
	}
}
