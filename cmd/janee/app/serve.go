// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/janee-ai/janee/pkg/audit"
	"github.com/janee-ai/janee/pkg/config"
	mcpserver "github.com/janee-ai/janee/pkg/mcp/server"
	"github.com/janee-ai/janee/pkg/networking"
	"github.com/janee-ai/janee/pkg/sessions"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"

	// shutdownTimeout bounds the graceful drain of the HTTP transport.
	shutdownTimeout = 10 * time.Second
)

var (
	serveTransport string
	serveHost      string
	servePort      int
)

func newServeCmd() *cobra.Command {
	// JANEE_PORT overrides the config file; the --port flag wins over both.
	defaultPort := 0
	if envPort := os.Getenv("JANEE_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			defaultPort = p
		}
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the janee MCP server",
		Long: `Start the MCP server that brokers agent requests.

With --transport stdio (the default) the server speaks MCP over
stdin/stdout, suitable for agents that spawn janee as a subprocess.
With --transport http it serves streamable HTTP at /mcp on the
configured host and port, plus /health and /version endpoints.

The reload_config tool is always advertised. The janee_exec tool is
advertised only when the configuration defines at least one exec-mode
capability.`,
		Args: cobra.NoArgs,
		RunE: serveCmdFunc,
	}

	cmd.Flags().StringVar(&serveTransport, "transport", transportStdio, "MCP transport: stdio or http")
	cmd.Flags().StringVar(&serveHost, "host", "", "Host for the HTTP transport (default: server.host from config)")
	cmd.Flags().IntVar(&servePort, "port", defaultPort,
		"Port for the HTTP transport (default: server.port from config; can also be set via JANEE_PORT)")

	return cmd
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := requireStore()
	if err != nil {
		return err
	}

	auditLog, err := audit.New(filepath.Join(store.Dir(), auditLogDir))
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	sessionMgr := sessions.NewManager(filepath.Join(store.Dir(), sessionStoreFile))

	handler, err := mcpserver.NewHandler(store, sessionMgr, auditLog)
	if err != nil {
		return err
	}

	snap := handler.Snapshot()
	opts := []mcpserver.Option{mcpserver.WithReload()}
	if hasExecCapability(snap) {
		opts = append(opts, mcpserver.WithExec())
	}

	host := serveHost
	if host == "" {
		host = snap.Server.Host
	}
	if host == "" {
		host = config.DefaultHost
	}
	port := servePort
	if port == 0 {
		port = snap.Server.Port
	}
	if port == 0 {
		port = config.DefaultPort
	}

	srv := mcpserver.New(&mcpserver.Config{Host: host, Port: port}, handler, opts...)

	switch serveTransport {
	case transportStdio:
		return serveStdio(ctx, cancel, srv)
	case transportHTTP:
		return serveHTTP(ctx, srv, host, port)
	default:
		return fmt.Errorf("unknown transport %q (expected %q or %q)", serveTransport, transportStdio, transportHTTP)
	}
}

// serveStdio blocks until stdin closes or a termination signal arrives.
func serveStdio(ctx context.Context, cancel context.CancelFunc, srv *mcpserver.Server) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveHTTP blocks until the listener fails or a termination signal arrives,
// then drains in-flight requests.
func serveHTTP(ctx context.Context, srv *mcpserver.Server, host string, port int) error {
	if !networking.IsAvailable(host, port) {
		return fmt.Errorf("port %d is not available on %s", port, host)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}

// hasExecCapability reports whether any configured capability runs in exec
// mode. The janee_exec tool is only advertised when one does.
func hasExecCapability(snap *config.Snapshot) bool {
	for _, capability := range snap.Capabilities {
		if capability.EffectiveMode() == config.ModeExec {
			return true
		}
	}
	return false
}
