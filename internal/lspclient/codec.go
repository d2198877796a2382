package lspclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// State mirrors the lifecycle a Codec moves through.
type State int

const (
	NotInitialized State = iota
	WaitingForInitialized
	Ready
	ShuttingDown
	Exited
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "NotInitialized"
	case WaitingForInitialized:
		return "WaitingForInitialized"
	case Ready:
		return "Ready"
	case ShuttingDown:
		return "ShuttingDown"
	case Exited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// message is the wire shape of every JSON-RPC message, request, response,
// and notification alike; which fields are set distinguishes the kind.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Event is implemented by every value Codec.Feed can produce.
type Event interface{ isEvent() }

// InitializedEvent fires once the server has responded to initialize and
// the codec has queued the initialized notification in reply.
type InitializedEvent struct{ Capabilities json.RawMessage }

// ResponseEvent is a reply to a request this client sent.
type ResponseEvent struct {
	ID     int64
	Result json.RawMessage
	Err    error
}

// ServerRequestEvent is a request the server sent that expects a reply.
// Reply via Codec.ReplyConfiguration or Codec.ReplyEmpty.
type ServerRequestEvent struct {
	ID     int64
	Method string
	Params json.RawMessage
}

// PublishDiagnosticsEvent carries the latest diagnostics for one document.
type PublishDiagnosticsEvent struct {
	URI         string
	Diagnostics []Diagnostic
}

// LogMessageEvent is a window/logMessage notification from the server.
type LogMessageEvent struct {
	Type    int
	Message string
}

// NotificationEvent is any other notification, passed through unclassified.
type NotificationEvent struct {
	Method string
	Params json.RawMessage
}

func (InitializedEvent) isEvent()        {}
func (ResponseEvent) isEvent()           {}
func (ServerRequestEvent) isEvent()      {}
func (PublishDiagnosticsEvent) isEvent() {}
func (LogMessageEvent) isEvent()         {}
func (NotificationEvent) isEvent()       {}

// Codec is the sans-I/O half of the LSP client: it builds outgoing
// messages into a send buffer and parses complete framed messages out of
// whatever bytes Feed is given, without performing any I/O itself.
type Codec struct {
	mu           sync.Mutex
	send         bytes.Buffer
	recv         []byte
	nextID       int64
	state        State
	initializeID int64
}

// NewCodec returns a Codec in the NotInitialized state.
func NewCodec() *Codec {
	return &Codec{state: NotInitialized}
}

// State reports the codec's current lifecycle state.
func (c *Codec) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Codec) id() int64 {
	c.nextID++
	return c.nextID
}

func (c *Codec) writeRequest(id int64, method string, params any) {
	raw, _ := json.Marshal(params)
	c.writeMessage(message{JSONRPC: "2.0", ID: &id, Method: method, Params: raw})
}

func (c *Codec) writeNotification(method string, params any) {
	raw, _ := json.Marshal(params)
	c.writeMessage(message{JSONRPC: "2.0", Method: method, Params: raw})
}

func (c *Codec) writeMessage(msg message) {
	body, _ := json.Marshal(msg)
	fmt.Fprintf(&c.send, "Content-Length: %d\r\n\r\n", len(body))
	c.send.Write(body)
}

// Initialize queues the initialize request and moves the codec to
// WaitingForInitialized.
func (c *Codec) Initialize(processID int, rootURI, rootPath string, folders []WorkspaceFolder, initOptions any) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.id()
	c.initializeID = id
	c.state = WaitingForInitialized
	c.writeRequest(id, "initialize", initializeParams{
		ProcessID:             processID,
		RootURI:               rootURI,
		RootPath:              rootPath,
		WorkspaceFolders:      folders,
		Trace:                 "off",
		Capabilities:          clientCapabilities,
		InitializationOptions: initOptions,
	})
	return id
}

// DidOpen queues a textDocument/didOpen notification.
func (c *Codec) DidOpen(uri, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeNotification("textDocument/didOpen", map[string]any{
		"textDocument": TextDocumentItem{URI: uri, LanguageID: "Cangjie", Version: 0, Text: text},
	})
}

// DidChange queues a textDocument/didChange notification with a
// whole-document replacement.
func (c *Codec) DidChange(uri string, version int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeNotification("textDocument/didChange", map[string]any{
		"textDocument":   VersionedTextDocumentIdentifier{URI: uri, Version: version},
		"contentChanges": []TextDocumentContentChangeEvent{{Text: text}},
	})
}

// Definition queues a textDocument/definition request and returns its ID.
func (c *Codec) Definition(uri string, pos Position) int64 {
	return c.positionRequest("textDocument/definition", uri, pos)
}

// References queues a textDocument/references request and returns its ID.
func (c *Codec) References(uri string, pos Position) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id()
	raw, _ := json.Marshal(struct {
		TextDocumentPositionParams
		Context map[string]any `json:"context"`
	}{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos,
		},
		Context: map[string]any{"includeDeclaration": true},
	})
	c.writeMessage(message{JSONRPC: "2.0", ID: &id, Method: "textDocument/references", Params: raw})
	return id
}

// Hover queues a textDocument/hover request and returns its ID.
func (c *Codec) Hover(uri string, pos Position) int64 {
	return c.positionRequest("textDocument/hover", uri, pos)
}

// Completion queues a textDocument/completion request and returns its ID.
func (c *Codec) Completion(uri string, pos Position) int64 {
	return c.positionRequest("textDocument/completion", uri, pos)
}

func (c *Codec) positionRequest(method, uri string, pos Position) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id()
	c.writeRequest(id, method, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos,
	})
	return id
}

// DocumentSymbol queues a textDocument/documentSymbol request and returns
// its ID.
func (c *Codec) DocumentSymbol(uri string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id()
	c.writeRequest(id, "textDocument/documentSymbol", map[string]any{
		"textDocument": TextDocumentIdentifier{URI: uri},
	})
	return id
}

// Shutdown queues a shutdown request and returns its ID.
func (c *Codec) Shutdown() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ShuttingDown
	id := c.id()
	c.writeRequest(id, "shutdown", nil)
	return id
}

// Exit queues an exit notification.
func (c *Codec) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Exited
	c.writeNotification("exit", nil)
}

// ReplyEmpty queues a success reply with a null result, the blanket answer
// for server-initiated requests this client doesn't act on (capability
// registration, work-done-progress creation).
func (c *Codec) ReplyEmpty(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeMessage(message{JSONRPC: "2.0", ID: &id, Result: json.RawMessage("null")})
}

// ReplyConfiguration queues a workspace/configuration reply: one empty
// object per requested item, since this client has no per-item settings to
// report.
func (c *Codec) ReplyConfiguration(id int64, itemCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]map[string]any, itemCount)
	for i := range items {
		items[i] = map[string]any{}
	}
	raw, _ := json.Marshal(items)
	c.writeMessage(message{JSONRPC: "2.0", ID: &id, Result: raw})
}

// Drain returns and clears everything queued to be written to the
// subprocess's stdin.
func (c *Codec) Drain() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send.Len() == 0 {
		return nil
	}
	out := make([]byte, c.send.Len())
	copy(out, c.send.Bytes())
	c.send.Reset()
	return out
}

// Feed appends data read from the subprocess's stdout and returns every
// event decoded from the complete framed messages now available. Partial
// messages remain buffered for the next call.
func (c *Codec) Feed(data []byte) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recv = append(c.recv, data...)
	var events []Event
	for {
		body, rest, ok, err := extractFrame(c.recv)
		if err != nil {
			return events, err
		}
		if !ok {
			break
		}
		c.recv = rest

		var msg message
		if err := json.Unmarshal(body, &msg); err != nil {
			continue // malformed message: drop and keep reading
		}
		events = append(events, c.classify(msg)...)
	}
	return events, nil
}

// classify turns one decoded wire message into zero or more Events,
// performing the initialize/initialized handshake inline when the message
// is the response this codec is waiting on.
func (c *Codec) classify(msg message) []Event {
	switch {
	case msg.ID != nil && msg.Method == "":
		// A response to a request this client sent.
		if c.state == WaitingForInitialized && *msg.ID == c.initializeID {
			c.state = Ready
			c.writeNotification("initialized", map[string]any{})
			var result initializeResult
			_ = json.Unmarshal(msg.Result, &result)
			return []Event{InitializedEvent{Capabilities: result.Capabilities}}
		}
		if msg.Error != nil {
			return []Event{ResponseEvent{ID: *msg.ID, Err: fmt.Errorf("LSP error %d: %s", msg.Error.Code, msg.Error.Message)}}
		}
		return []Event{ResponseEvent{ID: *msg.ID, Result: msg.Result}}

	case msg.ID != nil && msg.Method != "":
		// A request the server sent to us.
		return []Event{ServerRequestEvent{ID: *msg.ID, Method: msg.Method, Params: msg.Params}}

	case msg.Method == "textDocument/publishDiagnostics":
		var params publishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return nil
		}
		return []Event{PublishDiagnosticsEvent{URI: params.URI, Diagnostics: params.Diagnostics}}

	case msg.Method == "window/logMessage":
		var params struct {
			Type    int    `json:"type"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(msg.Params, &params)
		return []Event{LogMessageEvent{Type: params.Type, Message: params.Message}}

	default:
		return []Event{NotificationEvent{Method: msg.Method, Params: msg.Params}}
	}
}

// extractFrame pulls one "Content-Length: N\r\n\r\n<body>" message off the
// front of buf, returning the body, the remaining bytes, and whether a
// complete frame was found.
func extractFrame(buf []byte) (body []byte, rest []byte, ok bool, err error) {
	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, buf, false, nil
	}
	header := string(buf[:headerEnd])
	contentLength := -1
	for _, line := range strings.Split(header, "\r\n") {
		name, val, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, convErr := strconv.Atoi(strings.TrimSpace(val))
			if convErr != nil {
				return nil, buf, false, fmt.Errorf("invalid Content-Length header: %w", convErr)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, buf, false, fmt.Errorf("frame missing Content-Length header")
	}

	bodyStart := headerEnd + 4
	if len(buf) < bodyStart+contentLength {
		return nil, buf, false, nil // body not fully arrived yet
	}
	body = buf[bodyStart : bodyStart+contentLength]
	return body, buf[bodyStart+contentLength:], true, nil
}
