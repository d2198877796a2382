package lspclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
)

const (
	stderrTailDefault = 20
	readChunkSize     = 4096
)

// Options configures how a Client spawns and initializes the language
// server subprocess.
type Options struct {
	ServerPath      string
	WorkspacePath   string
	InitOptions     any
	Env             []string
	InitTimeout     time.Duration
	ShutdownGrace   time.Duration
	StderrTailLines int
}

type pendingRequest struct {
	result chan ResponseEvent
}

// Client drives one language-server subprocess: it owns the codec, the
// process's pipes, the pending-request correlation map, open-file
// versions, and the last-write-wins diagnostics cache.
type Client struct {
	opts  Options
	codec *Codec

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu          sync.Mutex
	pending     map[int64]*pendingRequest
	openFiles   map[string]int
	diagnostics map[string][]Diagnostic

	stderrMu    sync.Mutex
	stderrLines []string

	readyOnce sync.Once
	ready     chan struct{}
	readyErr  error

	done chan struct{}
}

// New constructs a Client. Start must be called before any operation.
func New(opts Options) *Client {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = 45 * time.Second
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 5 * time.Second
	}
	if opts.StderrTailLines <= 0 {
		opts.StderrTailLines = stderrTailDefault
	}
	return &Client{
		opts:        opts,
		codec:       NewCodec(),
		pending:     make(map[int64]*pendingRequest),
		openFiles:   make(map[string]int),
		diagnostics: make(map[string][]Diagnostic),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// IsAlive reports whether the subprocess is still running.
func (c *Client) IsAlive() bool {
	return c.cmd != nil && c.cmd.ProcessState == nil
}

// IsInitialized reports whether the server has replied Ready.
func (c *Client) IsInitialized() bool {
	return c.codec.State() == Ready
}

// Start spawns the language-server subprocess, sends initialize, and
// blocks until the server replies Initialized, ctx is cancelled, or
// opts.InitTimeout elapses. On timeout or early exit the process is
// killed and the returned error carries the captured stderr tail.
func (c *Client) Start(ctx context.Context) error {
	exe := c.opts.ServerPath
	cmd := exec.CommandContext(ctx, exe)
	cmd.Dir = c.opts.WorkspacePath
	cmd.Env = c.opts.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errs.NewBackendError("opening LSP server stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errs.NewBackendError("opening LSP server stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errs.NewBackendError("opening LSP server stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return errs.NewSourceUnavailable("starting LSP server process", err)
	}
	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout

	rootURI := pathToURI(c.opts.WorkspacePath)
	c.codec.Initialize(os.Getpid(), rootURI, c.opts.WorkspacePath,
		[]WorkspaceFolder{{URI: rootURI, Name: "workspace"}}, c.opts.InitOptions)
	if err := c.flush(); err != nil {
		return errs.NewProtocolError("writing initialize request", err)
	}

	go c.readLoop()
	go c.stderrPump(stderr)
	go func() { _ = cmd.Wait() }()

	select {
	case <-c.ready:
		if c.readyErr != nil {
			return c.readyErr
		}
		return nil
	case <-ctx.Done():
		c.kill()
		return errs.NewProtocolError("LSP initialization cancelled", ctx.Err())
	case <-time.After(c.opts.InitTimeout):
		c.kill()
		return errs.NewProtocolError(fmt.Sprintf(
			"LSP server did not initialize within %s (process alive: %v)\nstderr:\n%s",
			c.opts.InitTimeout, c.IsAlive(), c.stderrTail()), nil)
	}
}

func (c *Client) flush() error {
	// Before the process is started, messages stay queued in the codec.
	if c.stdin == nil {
		return nil
	}
	data := c.codec.Drain()
	if len(data) == 0 {
		return nil
	}
	_, err := c.stdin.Write(data)
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.stdout.Read(buf)
		if n > 0 {
			events, feedErr := c.codec.Feed(buf[:n])
			for _, ev := range events {
				c.handleEvent(ev)
			}
			if feedErr != nil {
				break
			}
			if flushErr := c.flush(); flushErr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}
	c.failPending()
	c.readyOnce.Do(func() {
		c.readyErr = errs.NewProtocolError(fmt.Sprintf(
			"LSP server exited before initialization\nstderr:\n%s", c.stderrTail()), nil)
		close(c.ready)
	})
}

func (c *Client) stderrPump(r interface{ Read([]byte) (int, error) }) {
	buf := make([]byte, readChunkSize)
	var partial []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			partial = append(partial, buf[:n]...)
			for {
				i := indexByte(partial, '\n')
				if i < 0 {
					break
				}
				line := string(partial[:i])
				partial = partial[i+1:]
				c.stderrMu.Lock()
				c.stderrLines = append(c.stderrLines, line)
				if len(c.stderrLines) > 200 {
					c.stderrLines = c.stderrLines[len(c.stderrLines)-200:]
				}
				c.stderrMu.Unlock()
			}
		}
		if err != nil {
			return
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func (c *Client) stderrTail() string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	n := c.opts.StderrTailLines
	lines := c.stderrLines
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

func (c *Client) handleEvent(ev Event) {
	switch e := ev.(type) {
	case InitializedEvent:
		c.readyOnce.Do(func() { close(c.ready) })

	case ResponseEvent:
		c.mu.Lock()
		req, ok := c.pending[e.ID]
		if ok {
			delete(c.pending, e.ID)
		}
		c.mu.Unlock()
		if ok {
			req.result <- e
		}

	case ServerRequestEvent:
		switch e.Method {
		case "workspace/configuration":
			var params configurationParams
			_ = jsonUnmarshalBestEffort(e.Params, &params)
			c.codec.ReplyConfiguration(e.ID, len(params.Items))
		default:
			// client/registerCapability, window/workDoneProgress/create, and
			// anything else this client doesn't act on: acknowledge so the
			// server doesn't hang waiting for a reply.
			c.codec.ReplyEmpty(e.ID)
		}

	case PublishDiagnosticsEvent:
		path := uriToPath(e.URI)
		c.mu.Lock()
		c.diagnostics[path] = e.Diagnostics
		c.mu.Unlock()

	case LogMessageEvent, NotificationEvent:
		// Logged at the caller's discretion; nothing to dispatch.
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)
	c.mu.Unlock()
	for _, req := range pending {
		req.result <- ResponseEvent{Err: fmt.Errorf("LSP server disconnected")}
	}
}

func (c *Client) awaitResponse(ctx context.Context, id int64) (ResponseEvent, error) {
	req := &pendingRequest{result: make(chan ResponseEvent, 1)}
	c.mu.Lock()
	c.pending[id] = req
	c.mu.Unlock()

	if err := c.flush(); err != nil {
		return ResponseEvent{}, errs.NewProtocolError("writing LSP request", err)
	}

	select {
	case resp := <-req.result:
		if resp.Err != nil {
			return ResponseEvent{}, errs.NewProtocolError(resp.Err.Error(), nil)
		}
		return resp, nil
	case <-ctx.Done():
		return ResponseEvent{}, errs.NewCancelled("LSP request cancelled", ctx.Err())
	}
}

// ensureFileOpen implements the file open/change protocol: the first call
// for a path sends didOpen at version 0; every subsequent call increments
// the version and sends didChange with the file's current full contents.
func (c *Client) ensureFileOpen(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return errs.NewNotFound("file not found: "+path, err)
	}
	uri := pathToURI(path)

	c.mu.Lock()
	version, open := c.openFiles[path]
	if open {
		version++
		c.openFiles[path] = version
	} else {
		c.openFiles[path] = 0
	}
	c.mu.Unlock()

	if open {
		c.codec.DidChange(uri, version, string(text))
	} else {
		c.codec.DidOpen(uri, string(text))
	}
	return c.flush()
}

// Definition returns the definition locations for a position.
func (c *Client) Definition(ctx context.Context, path string, line, character int) ([]Location, error) {
	if err := c.ensureFileOpen(path); err != nil {
		return nil, err
	}
	id := c.codec.Definition(pathToURI(path), Position{Line: line, Character: character})
	resp, err := c.awaitResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	var locations []Location
	_ = jsonUnmarshalBestEffort(resp.Result, &locations)
	return locations, nil
}

// References returns every reference to the symbol at a position.
func (c *Client) References(ctx context.Context, path string, line, character int) ([]Location, error) {
	if err := c.ensureFileOpen(path); err != nil {
		return nil, err
	}
	id := c.codec.References(pathToURI(path), Position{Line: line, Character: character})
	resp, err := c.awaitResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	var locations []Location
	_ = jsonUnmarshalBestEffort(resp.Result, &locations)
	return locations, nil
}

// Hover returns hover information for a position.
func (c *Client) Hover(ctx context.Context, path string, line, character int) (*Hover, error) {
	if err := c.ensureFileOpen(path); err != nil {
		return nil, err
	}
	id := c.codec.Hover(pathToURI(path), Position{Line: line, Character: character})
	resp, err := c.awaitResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	var hover Hover
	_ = jsonUnmarshalBestEffort(resp.Result, &hover)
	return &hover, nil
}

// Completion returns completion candidates at a position.
func (c *Client) Completion(ctx context.Context, path string, line, character int) (*CompletionList, error) {
	if err := c.ensureFileOpen(path); err != nil {
		return nil, err
	}
	id := c.codec.Completion(pathToURI(path), Position{Line: line, Character: character})
	resp, err := c.awaitResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	var list CompletionList
	_ = jsonUnmarshalBestEffort(resp.Result, &list)
	return &list, nil
}

// DocumentSymbol returns the symbol outline for a file.
func (c *Client) DocumentSymbol(ctx context.Context, path string) ([]DocumentSymbol, error) {
	if err := c.ensureFileOpen(path); err != nil {
		return nil, err
	}
	id := c.codec.DocumentSymbol(pathToURI(path))
	resp, err := c.awaitResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	var symbols []DocumentSymbol
	_ = jsonUnmarshalBestEffort(resp.Result, &symbols)
	return symbols, nil
}

// Diagnostics ensures the file is open, then polls the push-diagnostics
// cache for up to timeout, returning whatever's cached when it elapses
// (which may be nil, if the server hasn't pushed anything yet).
func (c *Client) Diagnostics(path string, timeout time.Duration) ([]Diagnostic, error) {
	if err := c.ensureFileOpen(path); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		diags, ok := c.diagnostics[path]
		c.mu.Unlock()
		if ok {
			return diags, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Shutdown sends shutdown then exit, waits briefly for the process to
// exit on its own, and kills it if it doesn't.
func (c *Client) Shutdown(ctx context.Context) error {
	if !c.IsAlive() {
		return nil
	}

	id := c.codec.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(ctx, c.opts.ShutdownGrace)
	_, _ = c.awaitResponse(shutdownCtx, id)
	cancel()

	c.codec.Exit()
	_ = c.flush()

	select {
	case <-c.done:
	case <-time.After(c.opts.ShutdownGrace):
		c.kill()
	}
	return nil
}

func (c *Client) kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

func jsonUnmarshalBestEffort(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func pathToURI(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	slashed := filepath.ToSlash(abs)
	if runtime.GOOS == "windows" && len(slashed) > 1 && slashed[1] == ':' {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

func uriToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	path := u.Path
	if runtime.GOOS == "windows" && len(path) > 2 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return path
}
