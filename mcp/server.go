// Package mcp exposes the gateway's operations as Model Context Protocol
// tools. Each tool forwards its decoded arguments to a crud.Service and
// returns the operation's structured result as JSON text, so the agent
// sees the same success and failure shape on every transport.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/GoCodeAlone/mongo-mcp/crud"
	"github.com/GoCodeAlone/mongo-mcp/observability/tracing"
)

// Version is the MCP server version, set at build time.
var Version = "dev"

// DefaultName is the implementation name reported to clients.
const DefaultName = "mongo-mcp"

// ServerOption configures optional Server behaviour.
type ServerOption func(*Server)

// WithLogger sets the logger for transport level events.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithImplementation overrides the name and version reported to clients.
func WithImplementation(name, version string) ServerOption {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
		if version != "" {
			s.version = version
		}
	}
}

// WithBaseURL sets the public URL the SSE transport advertises for its
// message endpoint.
func WithBaseURL(url string) ServerOption {
	return func(s *Server) { s.baseURL = url }
}

// Server wraps an mcp-go server with the six gateway tools and the session
// resources registered.
type Server struct {
	mcpServer *server.MCPServer
	service   *crud.Service
	logger    *slog.Logger
	name      string
	version   string
	baseURL   string
	rateLimit int
	jwtSecret []byte

	mu        sync.Mutex
	shutdowns []func(context.Context) error
}

// NewServer creates a Server backed by svc.
func NewServer(svc *crud.Service, opts ...ServerOption) *Server {
	s := &Server{
		service: svc,
		logger:  slog.Default(),
		name:    DefaultName,
		version: Version,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = server.NewMCPServer(
		s.name,
		s.version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions("This MCP server gives access to a single MongoDB database. "+
			"Call connect with a connection string and database name first; every other tool "+
			"works on that connection until disconnect or the next connect. "+
			"Documents, filters and updates use MongoDB's own query and update syntax. "+
			"Read mongo://docs/usage for examples and mongo://session for the connection state."),
	)

	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server instance.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves a single client over the given streams until ctx is
// done or the input is closed.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, stdin, stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// ServeSSE serves the legacy SSE transport on addr. It returns nil once
// Shutdown has been called.
func (s *Server) ServeSSE(addr string) error {
	httpSrv := newHTTPServer(addr)
	opts := []server.SSEOption{server.WithHTTPServer(httpSrv)}
	if s.baseURL != "" {
		opts = append(opts, server.WithBaseURL(s.baseURL))
	}
	sse := server.NewSSEServer(s.mcpServer, opts...)
	httpSrv.Handler = tracing.SpanMiddleware(s.wrapHTTP(sse))
	s.onShutdown(sse.Shutdown)

	s.logger.Info("serving MCP over SSE", "addr", addr)
	return serveResult("sse", sse.Start(addr))
}

// ServeHTTP serves the streamable HTTP transport on addr under /mcp. It
// returns nil once Shutdown has been called.
func (s *Server) ServeHTTP(addr string) error {
	httpSrv := newHTTPServer(addr)
	streamable := server.NewStreamableHTTPServer(s.mcpServer,
		server.WithStreamableHTTPServer(httpSrv),
		server.WithEndpointPath(EndpointPath),
	)
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, streamable)
	httpSrv.Handler = tracing.SpanMiddleware(s.wrapHTTP(mux))
	s.onShutdown(streamable.Shutdown)

	s.logger.Info("serving MCP over streamable HTTP", "addr", addr, "path", EndpointPath)
	return serveResult("http", streamable.Start(addr))
}

// EndpointPath is the streamable HTTP endpoint.
const EndpointPath = "/mcp"

// Shutdown stops every network transport started by this server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	fns := s.shutdowns
	s.shutdowns = nil
	s.mu.Unlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) onShutdown(fn func(context.Context) error) {
	s.mu.Lock()
	s.shutdowns = append(s.shutdowns, fn)
	s.mu.Unlock()
}

func newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func serveResult(transport string, err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("%s transport: %w", transport, err)
}
