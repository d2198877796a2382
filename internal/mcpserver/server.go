package mcpserver

import (
	"context"
	"fmt"
	"log"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server serves one peer's tools over stdio.
type Server struct {
	cfg       *config.Config
	peer      *Peer
	mcpServer *server.MCPServer
}

// NewServer wraps peer as a stdio MCP server.
func NewServer(cfg *config.Config, peer *Peer) *Server {
	s := &Server{cfg: cfg, peer: peer}
	s.mcpServer = buildMCPServer(cfg, peer)
	return s
}

// buildMCPServer registers the documentation tools, and the LSP tools when
// peer has a running language server, against a fresh mcp-go server
// instance.
func buildMCPServer(cfg *config.Config, peer *Peer) *server.MCPServer {
	mcpServer := server.NewMCPServer(cfg.Server.Name, cfg.Server.Version)

	tools := docTools()
	if peer.lsp != nil {
		tools = append(tools, lspTools()...)
	}
	for _, tool := range tools {
		toolName := tool.Name
		mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]interface{}
			if request.Params.Arguments != nil {
				var ok bool
				args, ok = request.Params.Arguments.(map[string]interface{})
				if !ok {
					return errorResult("invalid arguments format"), nil
				}
			} else {
				args = make(map[string]interface{})
			}
			return peer.handleToolCall(ctx, toolName, args)
		})
	}

	log.Printf("mcp server initialized: %s v%s (peer %s, %d tools)", cfg.Server.Name, cfg.Server.Version, peer.Key(), len(tools))
	return mcpServer
}

// Start serves the peer's tools over stdio until the transport closes.
// ctx is not used to stop serving.
func (s *Server) Start(ctx context.Context) error {
	log.Printf("starting mcp server on stdio transport...")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("stdio server error: %w", err)
	}
	return nil
}

// Close shuts down the underlying peer (its language server, if any).
func (s *Server) Close(ctx context.Context) error {
	return s.peer.Close(ctx)
}
