// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package server provides the MCP (Model Context Protocol) server for janee:
// tool registration, the dispatch pipeline, and the stdio and streamable-HTTP
// transports.
package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/janee-ai/janee/pkg/audit"
	"github.com/janee-ai/janee/pkg/config"
	"github.com/janee-ai/janee/pkg/forwarder"
	"github.com/janee-ai/janee/pkg/logger"
	"github.com/janee-ai/janee/pkg/networking"
	"github.com/janee-ai/janee/pkg/runner"
	"github.com/janee-ai/janee/pkg/sessions"
	"github.com/janee-ai/janee/pkg/signer"
)

// Handler executes MCP tool requests against the broker's state. The active
// configuration is an atomically swapped snapshot: a dispatch in flight keeps
// the snapshot it started with even across a concurrent reload.
type Handler struct {
	store    *config.Store
	sessions *sessions.Manager
	audit    *audit.Logger

	tokens  *signer.TokenSource
	signer  *signer.Signer
	forward *forwarder.Forwarder
	runner  *runner.Runner

	snapshot atomic.Pointer[config.Snapshot]

	now func() time.Time
}

// NewHandler loads the initial snapshot and wires the dispatch dependencies.
// The upstream timeout is fixed at construction; changing it in the config
// requires a restart.
func NewHandler(store *config.Store, sessionMgr *sessions.Manager, auditLog *audit.Logger) (*Handler, error) {
	snap, err := store.Reload()
	if err != nil {
		return nil, err
	}

	fwd, err := forwarder.New(snap.Server.UpstreamTimeout())
	if err != nil {
		return nil, err
	}

	tokenClient, err := networking.NewHttpClientBuilder().Build()
	if err != nil {
		return nil, err
	}
	tokens := signer.NewTokenSource(tokenClient)

	h := &Handler{
		store:    store,
		sessions: sessionMgr,
		audit:    auditLog,
		tokens:   tokens,
		signer:   signer.New(tokens),
		forward:  fwd,
		runner:   runner.New(),
		now:      time.Now,
	}
	h.snapshot.Store(snap)
	return h, nil
}

// Snapshot returns the configuration view current dispatches run against.
func (h *Handler) Snapshot() *config.Snapshot {
	return h.snapshot.Load()
}

// auditDenied records a request that was rejected before reaching upstream.
// Denials are always written, whatever the body-logging setting.
func (h *Handler) auditDenied(service, method, path, reason, agentID, denyReason string, started time.Time) {
	event := &audit.Event{
		Service:    service,
		Method:     method,
		Path:       path,
		StatusCode: 403,
		DurationMs: h.now().Sub(started).Milliseconds(),
		Reason:     reason,
		AgentID:    agentID,
		Denied:     true,
		DenyReason: denyReason,
	}
	if err := h.audit.Log(event); err != nil {
		logger.Warnf("Failed to write audit entry: %v", err)
	}
}

// agentIDFromContext extracts the MCP session id of the calling client, when
// the transport provides one.
func agentIDFromContext(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}
