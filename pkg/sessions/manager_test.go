// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *fakeClock, string) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "sessions.json")
	return newManager(path, clock.Now), clock, path
}

func readSessionsFile(t *testing.T, path string) []Session {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []Session
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestCreate_PersistsSession(t *testing.T) {
	t.Parallel()
	m, _, path := newTestManager(t)

	s, err := m.Create("stripe-readonly", "stripe", 300, Options{AgentID: "agent-1", Reason: "listing charges"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.ID, "sess_"))
	assert.Equal(t, "stripe-readonly", s.Capability)
	assert.Equal(t, "stripe", s.Service)
	assert.Equal(t, s.CreatedAt.Add(300*time.Second), s.ExpiresAt)

	persisted := readSessionsFile(t, path)
	require.Len(t, persisted, 1)
	assert.Equal(t, s.ID, persisted[0].ID)
	assert.False(t, persisted[0].Revoked)
}

func TestGet_LiveSession(t *testing.T) {
	t.Parallel()
	m, clock, _ := newTestManager(t)

	s, err := m.Create("cap", "svc", 60, Options{})
	require.NoError(t, err)

	// Valid up to and including the expiry instant.
	clock.Advance(60 * time.Second)
	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s.ID, got.ID)
}

func TestGet_ExpiredSessionIsSwept(t *testing.T) {
	t.Parallel()
	m, clock, path := newTestManager(t)

	s, err := m.Create("cap", "svc", 60, Options{})
	require.NoError(t, err)

	clock.Advance(61 * time.Second)

	_, ok := m.Get(s.ID)
	require.False(t, ok)

	// Swept from memory and from disk.
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Empty(t, readSessionsFile(t, path))
}

func TestGet_UnknownID(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	_, ok := m.Get("sess_missing")
	assert.False(t, ok)
}

func TestRevoke_PersistsRevokedBeforeReap(t *testing.T) {
	t.Parallel()
	m, _, path := newTestManager(t)

	s, err := m.Create("cap", "svc", 600, Options{})
	require.NoError(t, err)

	require.NoError(t, m.Revoke(s.ID))

	// Between revocation and the next sweep the file must carry
	// revoked=true, never revoked=false.
	persisted := readSessionsFile(t, path)
	require.Len(t, persisted, 1)
	assert.Equal(t, s.ID, persisted[0].ID)
	assert.True(t, persisted[0].Revoked)

	// A revoked session no longer validates, and the lookup doubles as the
	// sweep that reaps the record from disk.
	_, ok := m.Get(s.ID)
	assert.False(t, ok)
	assert.Empty(t, readSessionsFile(t, path))
}

func TestRevoke_UnknownID(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t)

	err := m.Revoke("sess_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestList_FiltersAndSweeps(t *testing.T) {
	t.Parallel()
	m, clock, path := newTestManager(t)

	short, err := m.Create("cap-a", "svc", 30, Options{})
	require.NoError(t, err)
	clock.Advance(time.Second)
	long, err := m.Create("cap-b", "svc", 3600, Options{})
	require.NoError(t, err)

	clock.Advance(60 * time.Second)

	live := m.List()
	require.Len(t, live, 1)
	assert.Equal(t, long.ID, live[0].ID)
	assert.NotEqual(t, short.ID, live[0].ID)

	// The expired session is also gone from disk.
	persisted := readSessionsFile(t, path)
	require.Len(t, persisted, 1)
	assert.Equal(t, long.ID, persisted[0].ID)
}

func TestList_SortedByCreation(t *testing.T) {
	t.Parallel()
	m, clock, _ := newTestManager(t)

	first, err := m.Create("cap", "svc", 3600, Options{})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := m.Create("cap", "svc", 3600, Options{})
	require.NoError(t, err)

	live := m.List()
	require.Len(t, live, 2)
	assert.Equal(t, first.ID, live[0].ID)
	assert.Equal(t, second.ID, live[1].ID)
}

func TestCount(t *testing.T) {
	t.Parallel()
	m, clock, _ := newTestManager(t)

	_, err := m.Create("cap", "svc", 30, Options{})
	require.NoError(t, err)
	_, err = m.Create("cap", "svc", 3600, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Count())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.Count())
}

func TestNewManager_LoadsPersistedSessions(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "sessions.json")

	m1 := newManager(path, clock.Now)
	s, err := m1.Create("cap", "svc", 3600, Options{AgentID: "agent-2"})
	require.NoError(t, err)

	// A fresh manager on the same path sees the session.
	m2 := newManager(path, clock.Now)
	got, ok := m2.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, "agent-2", got.AgentID)
}

func TestNewManager_MalformedFileStartsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{definitely not json"), 0600))

	clock := &fakeClock{t: time.Now()}
	m := newManager(path, clock.Now)
	assert.Empty(t, m.List())
}

func TestNewManager_SkipsBadEntries(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sessions.json")

	good := Session{
		ID:         "sess_good",
		Capability: "cap",
		Service:    "svc",
		CreatedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		ExpiresAt:  time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
	}
	goodJSON, err := json.Marshal(good)
	require.NoError(t, err)

	// One valid entry, one with an unparsable timestamp, one missing fields.
	raw := `[` + string(goodJSON) + `,
		{"id":"sess_bad","capability":"c","service":"s","createdAt":"not-a-time","expiresAt":"also-bad"},
		{"capability":"orphaned"}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)}
	m := newManager(path, clock.Now)

	live := m.List()
	require.Len(t, live, 1)
	assert.Equal(t, "sess_good", live[0].ID)
}

func TestParseTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"0s", 0, false},
		{"", 0, true},
		{"5", 0, true},
		{"m", 0, true},
		{"5w", 0, true},
		{"-5m", 0, true},
		{"5 m", 0, true},
		{"5m0s", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTTL(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
