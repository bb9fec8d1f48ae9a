// Package mcp exposes the game service over the Model Context Protocol
// so agent runtimes can play sessions through tools. Handlers are thin
// adapters; all rules live in the game service.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/storyloom/storyloom/internal/game/service"
)

const (
	serverName    = "storyloom"
	serverVersion = "0.1.0"
)

// Server wraps an MCP server around the game service.
type Server struct {
	service   *service.Service
	mcpServer *mcp.Server
}

// NewServer registers every tool and resource on a fresh MCP server.
func NewServer(svc *service.Service) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("game service is required")
	}

	s := &Server{
		service:   svc,
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio until the context ends.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
