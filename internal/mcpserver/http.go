package mcpserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/mark3labs/mcp-go/server"
)

// indexPathPattern matches the /{version}/{lang}/... shape used by every
// per-peer mount, so the 404 handler can tell an unmounted index apart
// from an unrelated bad path.
var indexPathPattern = regexp.MustCompile(`^/([^/]+)/([^/]+)(?:/.*)?$`)

// HTTPServer mounts one tool-surface instance per (version, lang) peer
// under /{version}/{lang}/mcp, alongside per-peer auxiliary endpoints and
// a 404 handler that reports what is actually mounted.
type HTTPServer struct {
	cfg   *config.Config
	mux   *http.ServeMux
	peers map[string]*Peer
}

// NewHTTPServer builds the multi-index HTTP server for peers. A failure
// building one peer's MCP server does not prevent the others from being
// mounted.
func NewHTTPServer(cfg *config.Config, peers []*Peer) *HTTPServer {
	s := &HTTPServer{cfg: cfg, peers: make(map[string]*Peer, len(peers))}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /indexes", s.handleListIndexes)

	for _, p := range peers {
		s.peers[p.Key()] = p
		prefix := "/" + p.Key()

		mcpServer := buildMCPServer(cfg, p)
		streamable := server.NewStreamableHTTPServer(mcpServer)
		mux.Handle(prefix+"/mcp", http.StripPrefix(prefix+"/mcp", streamable))

		mux.HandleFunc("GET "+prefix+"/health", peerHandler(p, peerHealth))
		mux.HandleFunc("GET "+prefix+"/info", peerHandler(p, peerInfo))
		mux.HandleFunc("POST "+prefix+"/search", peerHandler(p, peerSearch))
		mux.HandleFunc("GET "+prefix+"/topics", peerHandler(p, peerTopics))
		mux.HandleFunc("GET "+prefix+"/topics/{category}/{topic}", peerHandler(p, peerTopic))

		log.Printf("mounted peer %s at %s", p.Key(), prefix)
	}

	mux.HandleFunc("/", s.handleNotFound)
	s.mux = mux
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured host:port.
func (s *HTTPServer) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.HTTPHost, s.cfg.Server.HTTPPort)
	log.Printf("http server listening on %s", addr)
	return http.ListenAndServe(addr, s)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	keys := make([]string, 0, len(s.peers))
	for k := range s.peers {
		keys = append(keys, k)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "indexes": keys})
}

func (s *HTTPServer) handleListIndexes(w http.ResponseWriter, _ *http.Request) {
	indexes := make([]map[string]any, 0, len(s.peers))
	for key, p := range s.peers {
		indexes = append(indexes, map[string]any{
			"version":      p.Version,
			"lang":         p.Lang,
			"path":         "/" + key,
			"mcp_endpoint": "/" + key + "/mcp",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexes": indexes, "total": len(indexes)})
}

// handleNotFound enriches a 404 for paths shaped like /{version}/{lang}/...
// with the requested index and the list of what's actually mounted, so a
// client pointed at an unbuilt (version, lang) gets a useful error instead
// of a bare 404.
func (s *HTTPServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	match := indexPathPattern.FindStringSubmatch(r.URL.Path)
	if match == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found", "path": r.URL.Path})
		return
	}

	version, lang := match[1], match[2]
	available := make([]string, 0, len(s.peers))
	for k := range s.peers {
		available = append(available, k)
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":              "index not found",
		"requested":          version + "/" + lang,
		"message":            fmt.Sprintf("no index mounted for version %q and language %q", version, lang),
		"available_indexes": available,
	})
}

// peerHandler binds fn to the peer mounted at its registered prefix; each
// endpoint is registered once per peer, so the binding happens once at
// startup rather than by resolving a peer back out of each request.
func peerHandler(p *Peer, fn func(*Peer, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(p, w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
