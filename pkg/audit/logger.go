// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	dateLayout = "2006-01-02"

	logDirMode  = 0700
	logFileMode = 0600
)

var logFileRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.jsonl$`)

// Logger appends audit events to daily JSONL files. It is safe for
// concurrent use; each write re-evaluates the target filename so rotation at
// midnight UTC needs no coordination.
type Logger struct {
	dir string

	mu  sync.Mutex
	now func() time.Time

	// tail polling interval, shortened by tests
	interval time.Duration
}

// New creates a Logger writing to dir, creating it if needed.
func New(dir string) (*Logger, error) {
	return newLogger(dir, time.Now)
}

func newLogger(dir string, now func() time.Time) (*Logger, error) {
	if err := os.MkdirAll(dir, logDirMode); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	return &Logger{
		dir:      dir,
		now:      now,
		interval: 500 * time.Millisecond,
	}, nil
}

// Dir returns the directory the logger writes to.
func (l *Logger) Dir() string {
	return l.dir
}

// Log appends one event to the current day's file. Missing ID and Timestamp
// fields are filled in.
func (l *Logger) Log(event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	} else {
		event.Timestamp = event.Timestamp.UTC()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.pathForDate(event.Timestamp.Format(dateLayout))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode)
	if err != nil {
		return fmt.Errorf("opening audit log %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

func (l *Logger) pathForDate(date string) string {
	return filepath.Join(l.dir, date+".jsonl")
}

// logFiles returns the daily log files, newest first. The date-based naming
// makes lexicographic order chronological.
func (l *Logger) logFiles() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing audit log directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !logFileRe.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(l.dir, name))
	}
	return paths, nil
}
