// Package mcp exposes the Meta Ads toolset over the Model Context Protocol.
package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/auth"
	"github.com/armavita/meta-ads-mcp/internal/config"
	"github.com/armavita/meta-ads-mcp/internal/graph"
	"github.com/armavita/meta-ads-mcp/internal/pages"
)

// Version is the MCP server version.
const Version = "1.0.0"

// Server wires the Graph client, auth manager, and page resolver into an
// MCP server.
type Server struct {
	cfg      *config.Config
	manager  *auth.Manager
	client   *graph.Client
	resolver *pages.Resolver
	server   *mcp.Server
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg *config.Config, manager *auth.Manager) *Server {
	client := graph.NewClient(cfg.GraphBaseURL(), manager.Invalidate)

	impl := &mcp.Implementation{
		Name:    "meta-ads-mcp",
		Version: Version,
	}

	s := &Server{
		cfg:      cfg,
		manager:  manager,
		client:   client,
		resolver: pages.NewResolver(client),
		server:   mcp.NewServer(impl, nil),
	}

	s.registerAccountTools()
	s.registerCampaignTools()
	s.registerAdSetTools()
	s.registerAdTools()
	s.registerCreativeTools()
	s.registerInsightTools()
	s.registerPageTools()

	return s
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on the given address.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
