package lspclient

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPathToURIRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.cj")
	uri := pathToURI(path)
	if !bytes.HasPrefix([]byte(uri), []byte("file://")) {
		t.Fatalf("expected file:// URI, got %q", uri)
	}
	back := uriToPath(uri)
	if back != path {
		t.Fatalf("expected round trip to %q, got %q", path, back)
	}
}

func newTestClient() *Client {
	return New(Options{ServerPath: "unused", WorkspacePath: "/ws"})
}

func lastDrainedMethod(t *testing.T, c *Client) message {
	t.Helper()
	data := c.codec.Drain()
	if len(data) == 0 {
		t.Fatal("expected a queued message")
	}
	parts := bytes.SplitN(data, []byte("\r\n\r\n"), 2)
	var msg message
	if err := json.Unmarshal(parts[len(parts)-1], &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return msg
}

func TestEnsureFileOpenSendsDidOpenThenDidChange(t *testing.T) {
	c := newTestClient()
	path := filepath.Join(t.TempDir(), "a.cj")
	if err := os.WriteFile(path, []byte("func main() {}"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := c.ensureFileOpen(path); err != nil {
		t.Fatalf("ensureFileOpen failed: %v", err)
	}
	first := lastDrainedMethod(t, c)
	if first.Method != "textDocument/didOpen" {
		t.Fatalf("expected didOpen, got %q", first.Method)
	}

	if err := c.ensureFileOpen(path); err != nil {
		t.Fatalf("ensureFileOpen failed: %v", err)
	}
	second := lastDrainedMethod(t, c)
	if second.Method != "textDocument/didChange" {
		t.Fatalf("expected didChange, got %q", second.Method)
	}
	var params struct {
		TextDocument struct {
			Version int `json:"version"`
		} `json:"textDocument"`
	}
	if err := json.Unmarshal(second.Params, &params); err != nil {
		t.Fatalf("unmarshal params failed: %v", err)
	}
	if params.TextDocument.Version != 1 {
		t.Fatalf("expected version 1 on second open, got %d", params.TextDocument.Version)
	}
}

func TestEnsureFileOpenMissingFileErrors(t *testing.T) {
	c := newTestClient()
	if err := c.ensureFileOpen(filepath.Join(t.TempDir(), "missing.cj")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDiagnosticsReturnsCachedValueImmediately(t *testing.T) {
	c := newTestClient()
	path := filepath.Join(t.TempDir(), "a.cj")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	c.diagnostics[path] = []Diagnostic{{Message: "oops"}}

	start := time.Now()
	diags, err := c.Diagnostics(path, 2*time.Second)
	if err != nil {
		t.Fatalf("Diagnostics failed: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("expected cached diagnostics to return immediately")
	}
	if len(diags) != 1 || diags[0].Message != "oops" {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
}

func TestDiagnosticsTimesOutWhenNeverPushed(t *testing.T) {
	c := newTestClient()
	path := filepath.Join(t.TempDir(), "a.cj")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	diags, err := c.Diagnostics(path, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("Diagnostics failed: %v", err)
	}
	if diags != nil {
		t.Fatalf("expected nil diagnostics when nothing was ever pushed, got %+v", diags)
	}
}

func TestFailPendingResolvesAllWithError(t *testing.T) {
	c := newTestClient()
	req1 := &pendingRequest{result: make(chan ResponseEvent, 1)}
	req2 := &pendingRequest{result: make(chan ResponseEvent, 1)}
	c.pending[1] = req1
	c.pending[2] = req2

	c.failPending()

	for _, req := range []*pendingRequest{req1, req2} {
		select {
		case resp := <-req.result:
			if resp.Err == nil {
				t.Fatal("expected an error on disconnection")
			}
		default:
			t.Fatal("expected pending request to be resolved")
		}
	}
	if len(c.pending) != 0 {
		t.Fatalf("expected pending map to be cleared, got %d entries", len(c.pending))
	}
}
