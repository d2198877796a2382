// Package lspclient implements a client for the Language Server Protocol,
// driving a bundled Cangjie language server subprocess over stdio. The wire
// codec (Codec) is sans-I/O: it only builds and parses framed JSON-RPC
// messages. Client supplies the I/O — spawning the subprocess, pumping its
// pipes on dedicated goroutines, and correlating requests with responses.
package lspclient

import "encoding/json"

// Position is a zero-based line/character offset, as LSP defines it.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location identifies a range within a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// TextDocumentIdentifier names a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier names a document by URI and version, used
// on didChange so the server can detect stale edits.
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// TextDocumentItem is the full content of a document as sent on didOpen.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentContentChangeEvent describes an edit. This client only ever
// sends whole-document replacements, so Range is left unset.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

// TextDocumentPositionParams is the payload shared by definition,
// references, hover, and completion requests.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// Diagnostic is one entry of a publishDiagnostics notification.
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity,omitempty"`
	Code     any    `json:"code,omitempty"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

// Hover is the result of a textDocument/hover request.
type Hover struct {
	Contents any    `json:"contents"`
	Range    *Range `json:"range,omitempty"`
}

// CompletionItem is one entry in a completion list.
type CompletionItem struct {
	Label  string          `json:"label"`
	Kind   int             `json:"kind,omitempty"`
	Detail string          `json:"detail,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// CompletionList is the result of a textDocument/completion request.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// DocumentSymbol is one entry of a textDocument/documentSymbol result.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Kind           int              `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// WorkspaceFolder names one root of the client's workspace.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// initializeParams is the payload sent with the initialize request. The
// capabilities object is intentionally minimal: this client only consumes
// hover/definition/references/completion/documentSymbol/diagnostics, so it
// doesn't advertise capabilities (formatting, code actions, ...) it will
// never exercise.
type initializeParams struct {
	ProcessID             int               `json:"processId"`
	RootURI               string            `json:"rootUri"`
	RootPath              string            `json:"rootPath"`
	WorkspaceFolders      []WorkspaceFolder `json:"workspaceFolders"`
	Trace                 string            `json:"trace"`
	Capabilities          map[string]any    `json:"capabilities"`
	InitializationOptions any               `json:"initializationOptions"`
}

// initializeResult is the shape of a successful initialize response this
// client cares about; unknown fields are discarded.
type initializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
}

// publishDiagnosticsParams is the payload of a textDocument/publishDiagnostics
// notification.
type publishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// configurationParams is the payload of a workspace/configuration request;
// only the item count matters for this client's blanket reply.
type configurationParams struct {
	Items []json.RawMessage `json:"items"`
}

// clientCapabilities is the minimal capability set advertised to the server.
var clientCapabilities = map[string]any{
	"textDocument": map[string]any{
		"synchronization": map[string]any{
			"didSave": true,
		},
		"hover":          map[string]any{"contentFormat": []string{"plaintext", "markdown"}},
		"completion":     map[string]any{},
		"definition":     map[string]any{},
		"references":     map[string]any{},
		"documentSymbol": map[string]any{},
		"publishDiagnostics": map[string]any{
			"relatedInformation": false,
		},
	},
	"workspace": map[string]any{
		"workspaceFolders": true,
		"configuration":    true,
	},
}
