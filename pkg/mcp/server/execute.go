// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/janee-ai/janee/pkg/audit"
	"github.com/janee-ai/janee/pkg/config"
	"github.com/janee-ai/janee/pkg/errors"
	"github.com/janee-ai/janee/pkg/forwarder"
	"github.com/janee-ai/janee/pkg/policy"
	"github.com/janee-ai/janee/pkg/sessions"
	"github.com/janee-ai/janee/pkg/signer"
)

// executeArgs are the arguments of the execute tool.
type executeArgs struct {
	Capability string            `json:"capability"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Body       string            `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// executeResult is the structured payload returned to the agent. Response
// headers are deliberately not echoed back; they can carry cookies and other
// upstream credentials.
type executeResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Execute proxies one HTTP request through a capability.
func (h *Handler) Execute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := &executeArgs{}
	if err := request.BindArguments(args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	result, err := h.dispatchExecute(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(result), nil
}

// dispatchExecute runs the proxy pipeline: capability lookup, reason gate,
// policy check, session mint, origin-pinned URL build, signing, forwarding,
// and the audit write. The order is load-bearing: a denial must be decided
// before any session exists, and the session must exist before upstream is
// called.
func (h *Handler) dispatchExecute(ctx context.Context, args *executeArgs) (*executeResult, error) {
	snap := h.snapshot.Load()
	started := h.now()
	agentID := agentIDFromContext(ctx)
	method := strings.ToUpper(args.Method)

	capability, ok := snap.Capabilities[args.Capability]
	if !ok {
		return nil, errors.NewConfigError(fmt.Sprintf("unknown capability %q", args.Capability), nil)
	}
	if capability.EffectiveMode() != config.ModeProxy {
		return nil, errors.NewConfigError(fmt.Sprintf("capability %q is exec-mode; use janee_exec", args.Capability), nil)
	}

	if capability.RequiresReason && strings.TrimSpace(args.Reason) == "" {
		err := errors.NewPolicyError(fmt.Sprintf("capability %q requires a reason for every request", args.Capability), nil)
		h.auditDenied(capability.Service, method, args.Path, args.Reason, agentID, err.Message, started)
		return nil, err
	}

	if decision := policy.Check(capability.Rules, method, requestPathOnly(args.Path)); !decision.Allowed {
		err := errors.NewPolicyError(decision.Reason, nil)
		h.auditDenied(capability.Service, method, args.Path, args.Reason, agentID, decision.Reason, started)
		return nil, err
	}

	ttl, err := sessions.ParseTTL(capability.TTL)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("capability %q has an invalid ttl", args.Capability), err)
	}
	if _, err := h.sessions.Create(args.Capability, capability.Service, int64(ttl.Seconds()), sessions.Options{
		AgentID: agentID,
		Reason:  args.Reason,
	}); err != nil {
		return nil, errors.NewInternalError("failed to create session", err)
	}

	service, ok := snap.Services[capability.Service]
	if !ok {
		return nil, errors.NewConfigError(fmt.Sprintf("capability %q targets unknown service %q", args.Capability, capability.Service), nil)
	}

	target, err := forwarder.BuildTargetURL(service.BaseURL, args.Path)
	if err != nil {
		if errors.IsSecurity(err) {
			h.auditDenied(capability.Service, method, args.Path, args.Reason, agentID, err.Error(), started)
		}
		return nil, err
	}

	signReq := &signer.Request{
		Method:   method,
		Path:     target.Path,
		RawQuery: target.RawQuery,
		Body:     args.Body,
		Headers:  copyHeaders(args.Headers),
	}
	if err := h.signer.Sign(ctx, capability.Service, service.Auth, signReq); err != nil {
		return nil, err
	}
	target.RawQuery = signReq.RawQuery

	if args.Body != "" && !hasHeader(signReq.Headers, "Content-Type") {
		if signReq.Headers == nil {
			signReq.Headers = make(map[string]string)
		}
		signReq.Headers["Content-Type"] = "application/json"
	}

	response, err := h.forward.Forward(ctx, &forwarder.APIRequest{
		Service: capability.Service,
		Method:  method,
		URL:     target.String(),
		Headers: signReq.Headers,
		Body:    args.Body,
	})
	if err != nil {
		return nil, err
	}

	// A 401 on a service-account call usually means the cached token was
	// revoked upstream; drop it so the next call exchanges a fresh one.
	if response.StatusCode == http.StatusUnauthorized && service.Auth != nil && service.Auth.Type == config.AuthTypeServiceAccount {
		h.tokens.Invalidate(capability.Service, service.Auth.Scopes)
	}

	event := &audit.Event{
		Service:    capability.Service,
		Method:     method,
		Path:       args.Path,
		StatusCode: response.StatusCode,
		DurationMs: h.now().Sub(started).Milliseconds(),
		Reason:     args.Reason,
		AgentID:    agentID,
	}
	if snap.Server.LogBodies {
		event.RequestBody = audit.CaptureBody(method, args.Body)
	}
	if err := h.audit.Log(event); err != nil {
		return nil, errors.NewInternalError("failed to write audit entry", err)
	}

	return &executeResult{Status: response.StatusCode, Body: response.Body}, nil
}

// requestPathOnly strips the query string for policy matching; rules are
// written against paths, not query parameters.
func requestPathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func copyHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		out[name] = value
	}
	return out
}

// hasHeader reports whether the header map names key, ignoring case.
func hasHeader(headers map[string]string, key string) bool {
	for name := range headers {
		if strings.EqualFold(name, key) {
			return true
		}
	}
	return false
}
