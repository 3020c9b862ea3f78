// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// defaultReadLimit caps Read results when the caller passes no limit.
const defaultReadLimit = 100

// ReadOptions filters the events returned by Read.
type ReadOptions struct {
	// Limit caps the number of returned events; zero means 100.
	Limit int
	// Service keeps only events for the named service.
	Service string
	// Since keeps only events recorded at or after the given time.
	Since time.Time
}

// Read returns events in reverse-chronological order: files newest first,
// each file bottom to top. Malformed lines are skipped.
func (l *Logger) Read(opts ReadOptions) ([]Event, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}

	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, limit)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading audit log %s: %w", path, err)
		}

		lines := bytes.Split(data, []byte{'\n'})
		for i := len(lines) - 1; i >= 0; i-- {
			line := bytes.TrimSpace(lines[i])
			if len(line) == 0 {
				continue
			}

			// Cheap pre-filter before a full unmarshal.
			if opts.Service != "" && gjson.GetBytes(line, "service").String() != opts.Service {
				continue
			}

			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}

			// Timestamps are non-decreasing within a file, so once we
			// scan past Since everything that follows is older too.
			if !opts.Since.IsZero() && ev.Timestamp.Before(opts.Since) {
				return events, nil
			}

			events = append(events, ev)
			if len(events) >= limit {
				return events, nil
			}
		}
	}

	return events, nil
}
