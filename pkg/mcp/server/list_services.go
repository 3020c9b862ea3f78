// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/janee-ai/janee/pkg/policy"
)

// capabilityInfo is the agent-visible description of one capability. Secret
// material never appears here: env values are reduced to their keys.
type capabilityInfo struct {
	Name           string        `json:"name"`
	Service        string        `json:"service"`
	Mode           string        `json:"mode"`
	TTL            string        `json:"ttl"`
	AutoApprove    bool          `json:"autoApprove"`
	RequiresReason bool          `json:"requiresReason"`
	Rules          *policy.Rules `json:"rules,omitempty"`
	AllowCommands  []string      `json:"allowCommands,omitempty"`
	EnvKeys        []string      `json:"envKeys,omitempty"`
}

// ListServices describes every configured capability.
func (h *Handler) ListServices(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := h.snapshot.Load()

	names := make([]string, 0, len(snap.Capabilities))
	for name := range snap.Capabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]capabilityInfo, 0, len(names))
	for _, name := range names {
		capability := snap.Capabilities[name]
		info := capabilityInfo{
			Name:           name,
			Service:        capability.Service,
			Mode:           capability.EffectiveMode(),
			TTL:            capability.TTL,
			AutoApprove:    capability.AutoApprove,
			RequiresReason: capability.RequiresReason,
			Rules:          capability.Rules,
			AllowCommands:  capability.AllowCommands,
		}
		if len(capability.Env) > 0 {
			keys := make([]string, 0, len(capability.Env))
			for key := range capability.Env {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			info.EnvKeys = keys
		}
		results = append(results, info)
	}

	return mcp.NewToolResultStructuredOnly(results), nil
}
