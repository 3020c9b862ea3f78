// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/janee-ai/janee/pkg/logger"
)

// reloadResult reports what changed when the configuration was re-read.
type reloadResult struct {
	Services            int `json:"services"`
	Capabilities        int `json:"capabilities"`
	ServicesAdded       int `json:"servicesAdded"`
	ServicesRemoved     int `json:"servicesRemoved"`
	CapabilitiesAdded   int `json:"capabilitiesAdded"`
	CapabilitiesRemoved int `json:"capabilitiesRemoved"`
}

// ReloadConfig re-reads the config file and swaps the dispatch snapshot.
// In-flight requests finish against the snapshot they started with.
func (h *Handler) ReloadConfig(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := h.snapshot.Load()

	snap, err := h.store.Reload()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.snapshot.Store(snap)

	result := &reloadResult{
		Services:     len(snap.Services),
		Capabilities: len(snap.Capabilities),
	}
	result.ServicesAdded, result.ServicesRemoved = diffKeys(before.Services, snap.Services)
	result.CapabilitiesAdded, result.CapabilitiesRemoved = diffKeys(before.Capabilities, snap.Capabilities)

	logger.Infof("Configuration reloaded: %d services, %d capabilities", result.Services, result.Capabilities)
	return mcp.NewToolResultStructuredOnly(result), nil
}

// diffKeys counts the key-set changes between two maps.
func diffKeys[V any](before, after map[string]V) (added, removed int) {
	for key := range after {
		if _, ok := before[key]; !ok {
			added++
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			removed++
		}
	}
	return added, removed
}
