// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janee-ai/janee/pkg/config"
)

func TestHasExecCapability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		capabilities map[string]*config.Capability
		want         bool
	}{
		{
			name:         "no capabilities",
			capabilities: nil,
			want:         false,
		},
		{
			name: "proxy only",
			capabilities: map[string]*config.Capability{
				"api": {Service: "svc", TTL: "15m"},
			},
			want: false,
		},
		{
			name: "explicit proxy mode",
			capabilities: map[string]*config.Capability{
				"api": {Service: "svc", TTL: "15m", Mode: config.ModeProxy},
			},
			want: false,
		},
		{
			name: "exec present",
			capabilities: map[string]*config.Capability{
				"api": {Service: "svc", TTL: "15m"},
				"cli": {Service: "svc", TTL: "5m", Mode: config.ModeExec, AllowCommands: []string{"git"}},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{Capabilities: tt.capabilities}
			assert.Equal(t, tt.want, hasExecCapability(cfg.Snapshot()))
		})
	}
}

func TestNewServeCmd_Defaults(t *testing.T) {
	t.Setenv("JANEE_PORT", "")

	cmd := newServeCmd()
	transport := cmd.Flags().Lookup("transport")
	require.NotNil(t, transport)
	assert.Equal(t, transportStdio, transport.DefValue)

	port := cmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "0", port.DefValue)
}

func TestNewServeCmd_PortFromEnv(t *testing.T) {
	t.Setenv("JANEE_PORT", "7777")

	cmd := newServeCmd()
	port := cmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "7777", port.DefValue)
}
