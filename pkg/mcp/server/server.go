// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/janee-ai/janee/pkg/logger"
	"github.com/janee-ai/janee/pkg/versions"
)

// readHeaderTimeout guards the HTTP transport against slowloris clients.
const readHeaderTimeout = 10 * time.Second

// Config holds the transport settings for the MCP server.
type Config struct {
	Host string
	Port int
}

// Server is the janee MCP server over one of the two transports.
type Server struct {
	config     *Config
	mcpServer  *server.MCPServer
	httpServer *http.Server
	handler    *Handler

	enableReload bool
	enableExec   bool
}

// Option toggles the optional tools a server advertises.
type Option func(*Server)

// WithReload advertises the reload_config tool.
func WithReload() Option {
	return func(s *Server) { s.enableReload = true }
}

// WithExec advertises the janee_exec tool.
func WithExec() Option {
	return func(s *Server) { s.enableExec = true }
}

// New creates the MCP server and registers its tools.
func New(config *Config, handler *Handler, opts ...Option) *Server {
	versionInfo := versions.GetVersionInfo()
	mcpServer := server.NewMCPServer(
		"janee",
		versionInfo.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		config:    config,
		mcpServer: mcpServer,
		handler:   handler,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin/stdout until the context is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	logger.Infof("Starting janee MCP server on stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

// Start serves MCP over streamable HTTP at /mcp, with health and version
// endpoints beside it. It blocks until Shutdown is called or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	streamable := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(func(context.Context, *http.Request) context.Context {
			return ctx
		}),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(versions.GetVersionInfo()); err != nil {
			logger.Errorf("Failed to encode version info: %v", err)
		}
	})
	r.Handle("/mcp", streamable)

	s.httpServer = &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infof("Starting janee MCP server on %s", s.Address())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP transport. It is a no-op for stdio.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	logger.Info("Shutting down MCP server...")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the URL of the MCP endpoint.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s:%d/mcp", s.config.Host, s.config.Port)
}

// registerTools wires the janee tools into the MCP server. reload_config and
// janee_exec only appear when the corresponding option was supplied.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_services",
		Description: "List the capabilities this broker mediates, with their target services, modes, TTLs and policy rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handler.ListServices)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "execute",
		Description: "Execute an HTTP request against a capability's service. Credentials are injected by the broker; they never appear in the response.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"capability": map[string]interface{}{
					"type":        "string",
					"description": "Name of the capability to use (see list_services)",
				},
				"method": map[string]interface{}{
					"type":        "string",
					"description": "HTTP method (GET, POST, PUT, PATCH, DELETE)",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Request path relative to the service base URL, query string included",
				},
				"body": map[string]interface{}{
					"type":        "string",
					"description": "Request body, usually JSON",
				},
				"headers": map[string]interface{}{
					"type":        "object",
					"description": "Additional request headers",
					"additionalProperties": map[string]interface{}{
						"type": "string",
					},
				},
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Why this request is being made; required by some capabilities",
				},
			},
			Required: []string{"capability", "method", "path"},
		},
	}, s.handler.Execute)

	if s.enableReload {
		s.mcpServer.AddTool(mcp.Tool{
			Name:        "reload_config",
			Description: "Re-read the configuration file and apply changes to services and capabilities",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		}, s.handler.ReloadConfig)
	}

	if s.enableExec {
		s.mcpServer.AddTool(mcp.Tool{
			Name:        "janee_exec",
			Description: "Run a whitelisted command with credentials injected into its environment. Output is scrubbed of credential values.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"capability": map[string]interface{}{
						"type":        "string",
						"description": "Name of the exec-mode capability to use",
					},
					"command": map[string]interface{}{
						"type":        "array",
						"description": "Command and arguments as separate items; no shell is involved",
						"items": map[string]interface{}{
							"type": "string",
						},
					},
					"stdin": map[string]interface{}{
						"type":        "string",
						"description": "Data to write to the command's standard input",
					},
					"reason": map[string]interface{}{
						"type":        "string",
						"description": "Why this command is being run; required by some capabilities",
					},
				},
				Required: []string{"capability", "command"},
			},
		}, s.handler.Exec)
	}
}
