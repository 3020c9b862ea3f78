// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janee-ai/janee/pkg/config"
)

func TestResolveConfigDir(t *testing.T) {
	dir := t.TempDir()
	viper.Set("config-dir", dir)
	t.Cleanup(func() { viper.Set("config-dir", "") })

	resolved, err := resolveConfigDir()
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)

	viper.Set("config-dir", "")
	resolved, err = resolveConfigDir()
	require.NoError(t, err)
	assert.NotEmpty(t, resolved)
}

func TestRequireStore(t *testing.T) {
	dir := t.TempDir()
	viper.Set("config-dir", dir)
	t.Cleanup(func() { viper.Set("config-dir", "") })

	_, err := requireStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "janee init")

	_, err = config.NewStore(dir).Init(false)
	require.NoError(t, err)

	store, err := requireStore()
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
}

func TestReadSecretValue_Piped(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	oldStdin := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = oldStdin })

	_, err = w.WriteString("piped-credential\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	value, err := readSecretValue("Enter value: ")
	require.NoError(t, err)
	assert.Equal(t, "piped-credential", value)
}
