// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/janee-ai/janee/pkg/audit"
	"github.com/janee-ai/janee/pkg/config"
	"github.com/janee-ai/janee/pkg/errors"
	"github.com/janee-ai/janee/pkg/policy"
	"github.com/janee-ai/janee/pkg/runner"
	"github.com/janee-ai/janee/pkg/sessions"
)

// execArgs are the arguments of the janee_exec tool.
type execArgs struct {
	Capability string   `json:"capability"`
	Command    []string `json:"command"`
	Stdin      string   `json:"stdin,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// execResult is the structured payload returned to the agent. Output is
// scrubbed before it gets here; no credential of 8+ characters survives.
type execResult struct {
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        int    `json:"exitCode"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// Exec runs one whitelisted command under an exec-mode capability.
func (h *Handler) Exec(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := &execArgs{}
	if err := request.BindArguments(args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	result, err := h.dispatchExec(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(result), nil
}

// dispatchExec mirrors the proxy pipeline with the forwarder swapped for the
// subprocess runner: policy sees method "EXEC" and the joined command line as
// the path.
func (h *Handler) dispatchExec(ctx context.Context, args *execArgs) (*execResult, error) {
	snap := h.snapshot.Load()
	started := h.now()
	agentID := agentIDFromContext(ctx)
	commandLine := strings.Join(args.Command, " ")

	capability, ok := snap.Capabilities[args.Capability]
	if !ok {
		return nil, errors.NewConfigError(fmt.Sprintf("unknown capability %q", args.Capability), nil)
	}
	if capability.EffectiveMode() != config.ModeExec {
		return nil, errors.NewConfigError(fmt.Sprintf("capability %q is not an exec capability", args.Capability), nil)
	}

	if capability.RequiresReason && strings.TrimSpace(args.Reason) == "" {
		err := errors.NewPolicyError(fmt.Sprintf("capability %q requires a reason for every request", args.Capability), nil)
		h.auditDenied(capability.Service, "EXEC", commandLine, args.Reason, agentID, err.Message, started)
		return nil, err
	}

	if decision := policy.Check(capability.Rules, "EXEC", commandLine); !decision.Allowed {
		err := errors.NewPolicyError(decision.Reason, nil)
		h.auditDenied(capability.Service, "EXEC", commandLine, args.Reason, agentID, decision.Reason, started)
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

	spec := &runner.Spec{
		Command:       args.Command,
		Stdin:         args.Stdin,
		Env:           substituteEnv(capability.Env, service.Auth),
		WorkDir:       capability.WorkDir,
		AllowCommands: capability.AllowCommands,
		Scrub:         scrubValues(service.Auth),
	}
	if capability.Timeout > 0 {
		spec.Timeout = time.Duration(capability.Timeout) * time.Second
	}

	result, err := h.runner.Run(ctx, spec)
	if err != nil {
		if errors.IsSecurity(err) {
			h.auditDenied(capability.Service, "EXEC", commandLine, args.Reason, agentID, err.Error(), started)
		}
		return nil, err
	}

	statusCode := 200
	if result.ExitCode != 0 {
		statusCode = 500
	}
	if err := h.audit.Log(&audit.Event{
		Service:    capability.Service,
		Method:     "EXEC",
		Path:       commandLine,
		StatusCode: statusCode,
		DurationMs: h.now().Sub(started).Milliseconds(),
		Reason:     args.Reason,
		AgentID:    agentID,
	}); err != nil {
		return nil, errors.NewInternalError("failed to write audit entry", err)
	}

	return &execResult{
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		ExitCode:        result.ExitCode,
		ExecutionTimeMs: result.ExecutionTimeMs,
	}, nil
}

// substituteEnv expands credential placeholders in the capability's env
// overlay against the service's resolved secrets.
func substituteEnv(env map[string]string, auth *config.AuthConfig) map[string]string {
	if len(env) == 0 {
		return nil
	}
	replacer := credentialReplacer(auth)
	out := make(map[string]string, len(env))
	for name, value := range env {
		out[name] = replacer.Replace(value)
	}
	return out
}

func credentialReplacer(auth *config.AuthConfig) *strings.Replacer {
	if auth == nil {
		auth = &config.AuthConfig{}
	}
	return strings.NewReplacer(
		"{{credential}}", auth.Key,
		"{{apiKey}}", auth.APIKey,
		"{{apiSecret}}", auth.APISecret,
		"{{passphrase}}", auth.Passphrase,
	)
}

// scrubValues lists the secrets to redact from subprocess output, in
// redaction order: primary credential, apiKey, apiSecret, passphrase.
func scrubValues(auth *config.AuthConfig) []string {
	if auth == nil {
		return nil
	}
	return []string{auth.Key, auth.APIKey, auth.APISecret, auth.Passphrase}
}
