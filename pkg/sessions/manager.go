// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/janee-ai/janee/pkg/crypto"
	"github.com/janee-ai/janee/pkg/logger"
)

const (
	idPrefix  = "sess"
	idEntropy = 16

	fileMode = 0600
)

// Options carries the optional attributes of a new session.
type Options struct {
	AgentID string
	Reason  string
}

// Manager holds the live sessions. One mutex guards both the map and the
// file write so persisted state never interleaves.
type Manager struct {
	path string

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewManager creates a manager backed by the JSON file at path, loading any
// sessions a previous process left behind. An unreadable or malformed file
// is not fatal: the manager starts empty and logs a warning.
func NewManager(path string) *Manager {
	return newManager(path, time.Now)
}

func newManager(path string, now func() time.Time) *Manager {
	m := &Manager{
		path:     path,
		sessions: make(map[string]*Session),
		now:      now,
	}
	m.load()
	return m
}

// Create mints a new session for the capability, inserts it, and persists.
func (m *Manager) Create(capability, service string, ttlSeconds int64, opts Options) (*Session, error) {
	id, err := crypto.NewToken(idPrefix, idEntropy)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := m.now().UTC()
	s := &Session{
		ID:         id,
		Capability: capability,
		Service:    service,
		AgentID:    opts.AgentID,
		Reason:     opts.Reason,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(ttlSeconds) * time.Second),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = s
	if err := m.persist(); err != nil {
		return nil, err
	}

	out := *s
	return &out, nil
}

// Get returns the session if it is live. A dead session is removed from
// memory as a side effect, and the file is rewritten to match.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}

	if !s.Live(m.now()) {
		delete(m.sessions, id)
		if err := m.persist(); err != nil {
			logger.Warnf("Persisting sessions after sweep: %v", err)
		}
		return nil, false
	}

	out := *s
	return &out, true
}

// Revoke marks the session revoked and persists that fact. The record stays
// in the file with revoked=true until the next sweep reaps it, so an observer
// tailing the file sees the revocation rather than a silent disappearance.
func (m *Manager) Revoke(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}

	s.Revoked = true
	return m.persist()
}

// List returns the live sessions sorted by creation time. Expired entries
// encountered along the way are swept, and the sweep is persisted.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sweepLocked()
}

// Cleanup removes dead sessions from memory and disk.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
}

// Count returns the number of live sessions, sweeping dead ones.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sweepLocked())
}

// sweepLocked drops dead sessions, persists if anything changed, and returns
// the live set sorted by creation time. Callers must hold m.mu.
func (m *Manager) sweepLocked() []*Session {
	now := m.now()

	live := make([]*Session, 0, len(m.sessions))
	swept := false
	for id, s := range m.sessions {
		if !s.Live(now) {
			delete(m.sessions, id)
			swept = true
			continue
		}
		out := *s
		live = append(live, &out)
	}

	if swept {
		if err := m.persist(); err != nil {
			logger.Warnf("Persisting sessions after sweep: %v", err)
		}
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.Before(live[j].CreatedAt)
	})
	return live
}

// persist writes the current map to the sessions file. Callers must hold
// m.mu.
func (m *Manager) persist() error {
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}

	if err := os.WriteFile(m.path, data, fileMode); err != nil {
		return fmt.Errorf("writing sessions file: %w", err)
	}
	return nil
}

// load reads the sessions file into memory. Entries that fail to parse are
// skipped; a file that fails to parse wholesale leaves the manager empty.
func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("Reading sessions file %s: %v", m.path, err)
		}
		return
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warnf("Sessions file %s is malformed, starting empty: %v", m.path, err)
		return
	}

	for _, entry := range raw {
		var s Session
		if err := json.Unmarshal(entry, &s); err != nil {
			logger.Warnf("Skipping malformed session entry: %v", err)
			continue
		}
		if s.ID == "" || s.CreatedAt.IsZero() || s.ExpiresAt.IsZero() {
			logger.Warnf("Skipping session entry with missing fields")
			continue
		}
		m.sessions[s.ID] = &s
	}
}
